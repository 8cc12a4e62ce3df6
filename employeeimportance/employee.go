//go:build !solution

package employeeimportance

import (
	"errors"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	ErrNotFound = errors.New("employee not found")
	ErrCycle    = errors.New("cycle detected")
	ErrOverflow = errors.New("importance overflows int")
)

// Employee is a single record of the input list.
type Employee struct {
	ID           int   `yaml:"id" json:"id"`
	Importance   int   `yaml:"importance" json:"importance"`
	Subordinates []int `yaml:"subordinates" json:"subordinates"`
}

// Directory maps employee id to the employee record.
type Directory map[int]Employee

// NewDirectory indexes employees by id. If several records share an id,
// the last one wins.
func NewDirectory(employees []Employee) Directory {
	dir := make(Directory, len(employees))
	for _, e := range employees {
		dir[e.ID] = e
	}
	return dir
}

// Lookup returns employee with the given id or error wrapping ErrNotFound.
func (d Directory) Lookup(id int) (Employee, error) {
	e, ok := d[id]
	if !ok {
		return Employee{}, fmt.Errorf("employee %d: %w", id, ErrNotFound)
	}
	return e, nil
}

// IDs returns all ids of the directory in ascending order.
func (d Directory) IDs() []int {
	ids := maps.Keys(d)
	slices.Sort(ids)
	return ids
}
