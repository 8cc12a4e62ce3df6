//go:build !solution

package employeeimportance

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// MissingPolicy decides what happens when a subordinate id is absent
// from the directory.
type MissingPolicy int

const (
	// MissingFail stops the traversal with ErrNotFound.
	MissingFail MissingPolicy = iota
	// MissingZero treats an unknown subordinate as contributing nothing.
	MissingZero
)

// ParseMissingPolicy accepts "error" (or empty string) and "zero".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return MissingFail, nil
	case "zero":
		return MissingZero, nil
	default:
		return MissingFail, fmt.Errorf("unknown missing policy %q", s)
	}
}

func (p MissingPolicy) String() string {
	if p == MissingZero {
		return "zero"
	}
	return "error"
}

type Option func(r *Resolver)

func WithMissing(p MissingPolicy) Option {
	return func(r *Resolver) {
		r.missing = p
	}
}

// CountOnce makes every reachable employee count exactly once, even if it
// is reachable from the root by several paths.
func CountOnce() Option {
	return func(r *Resolver) {
		r.countOnce = true
	}
}

type Resolver struct {
	dir       Directory
	missing   MissingPolicy
	countOnce bool
}

func NewResolver(employees []Employee, opts ...Option) *Resolver {
	r := &Resolver{dir: NewDirectory(employees)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetImportance returns importance of employee id plus importance of all
// its direct and indirect subordinates.
//
// Shared subordinates are counted once per path, unknown ids and cycles
// are reported as errors. A sum that does not fit into int fails with
// ErrOverflow.
func GetImportance(employees []Employee, id int) (int, error) {
	return NewResolver(employees).Importance(id)
}

// frame - вершина на стеке обхода и индекс следующего подчинённого
type frame struct {
	emp  Employee
	next int
}

// checkEvery - как часто обход проверяет отмену контекста (в шагах, степень двойки)
const checkEvery = 1 << 10

func (r *Resolver) Importance(id int) (int, error) {
	return r.ImportanceContext(context.Background(), id)
}

// ImportanceContext is Importance that stops with ctx.Err() once ctx is done.
// Per-path counting is exponential on diamond-shaped hierarchies, so callers
// serving untrusted input should pass a context with a deadline.
func (r *Resolver) ImportanceContext(ctx context.Context, id int) (int, error) {
	root, err := r.dir.Lookup(id)
	if err != nil {
		return 0, err
	}

	// Рекурсия заменена явным стеком: глубина иерархии ограничена только памятью.
	// onPath - вершины текущего пути от корня, повторный вход в них означает цикл.
	onPath := map[int]bool{root.ID: true}
	var seen map[int]bool
	if r.countOnce {
		seen = map[int]bool{root.ID: true}
	}

	total := root.Importance
	stack := []frame{{emp: root}}
	for steps := 0; len(stack) > 0; steps++ {
		if steps&(checkEvery-1) == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		top := &stack[len(stack)-1]
		if top.next == len(top.emp.Subordinates) {
			delete(onPath, top.emp.ID)
			stack = stack[:len(stack)-1]
			continue
		}
		subID := top.emp.Subordinates[top.next]
		top.next++

		if onPath[subID] {
			return 0, fmt.Errorf("employee %d reached again from %d: %w", subID, top.emp.ID, ErrCycle)
		}
		if seen[subID] {
			continue
		}

		sub, ok := r.dir[subID]
		if !ok {
			if r.missing == MissingZero {
				continue
			}
			return 0, fmt.Errorf("subordinate %d of employee %d: %w", subID, top.emp.ID, ErrNotFound)
		}

		if seen != nil {
			seen[subID] = true
		}
		onPath[subID] = true
		if total, ok = addImportance(total, sub.Importance); !ok {
			return 0, fmt.Errorf("importance of employee %d: %w", id, ErrOverflow)
		}
		stack = append(stack, frame{emp: sub})
	}
	return total, nil
}

func addImportance(a, b int) (int, bool) {
	if (b > 0 && a > math.MaxInt-b) || (b < 0 && a < math.MinInt-b) {
		return 0, false
	}
	return a + b, true
}

// Totals computes importance for every employee of the directory.
func (r *Resolver) Totals() (map[int]int, error) {
	return r.TotalsContext(context.Background())
}

func (r *Resolver) TotalsContext(ctx context.Context) (map[int]int, error) {
	totals := make(map[int]int, len(r.dir))
	for _, id := range r.dir.IDs() {
		total, err := r.ImportanceContext(ctx, id)
		if err != nil {
			return nil, err
		}
		totals[id] = total
	}
	return totals, nil
}
