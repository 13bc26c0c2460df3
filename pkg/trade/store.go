package trade

import "time"

type Store interface {
	List(from time.Time, to time.Time) ([]*Execution, error)
	Update(*Execution) error
	Delete(*Execution) error
}
