package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/igolaizola/tgsignal/pkg/trade"
)

type Store struct {
	executions sync.Map
}

func (s *Store) List(from time.Time, to time.Time) ([]*trade.Execution, error) {
	var executions []*trade.Execution
	s.executions.Range(func(key interface{}, value interface{}) bool {
		e := value.(trade.Execution)
		if e.StartTime.Before(from) || e.StartTime.After(to) {
			return true
		}
		executions = append(executions, &e)
		return true
	})
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartTime.Before(executions[j].StartTime)
	})
	return executions, nil
}

func (s *Store) Update(e *trade.Execution) error {
	s.executions.Store(e.StartTime.UnixNano(), *e)
	return nil
}

func (s *Store) Delete(e *trade.Execution) error {
	s.executions.Delete(e.StartTime.UnixNano())
	return nil
}
