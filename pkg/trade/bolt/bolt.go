package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/igolaizola/tgsignal/pkg/trade"
)

var bucket = []byte("executions")

func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: couldn't open bolt db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: couldn't create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

type Store struct {
	db *bolt.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(from time.Time, to time.Time) ([]*trade.Execution, error) {
	var executions []*trade.Execution
	if err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()

		// Time range
		min := key(from)
		max := key(to)

		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			var e trade.Execution
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("couldn't decode: %w", err)
			}
			if e.StartTime.Before(from) || e.StartTime.After(to) {
				continue
			}
			executions = append(executions, &e)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("bolt: couldn't query: %w", err)
	}
	return executions, nil
}

func (s *Store) Update(e *trade.Execution) error {
	k := key(e.StartTime)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		byt, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		return b.Put(k, byt)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't put %s: %w", k, err)
	}
	return nil
}

func (s *Store) Delete(e *trade.Execution) error {
	k := key(e.StartTime)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(k)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't delete %s: %w", k, err)
	}
	return nil
}

// key keeps lexicographic order equal to time order.
func key(t time.Time) []byte {
	return []byte(t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
}
