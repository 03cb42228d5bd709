// Package memory is an in-process analytical store for tests and local runs.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/fystack/tron-ledger-crawler/internal/model"
)

type Sink[T model.Record] struct {
	mu   sync.RWMutex
	rows []T
	role model.AccountRole
}

func New[T model.Record](role model.AccountRole) *Sink[T] {
	return &Sink[T]{role: role}
}

// InsertBatch appends records. Duplicates are kept, as in the SQL backends.
func (s *Sink[T]) InsertBatch(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, records...)
	return nil
}

// Latest returns the row with the highest block timestamp involving account,
// or nil when there is none.
func (s *Sink[T]) Latest(ctx context.Context, account string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *T
	for i := range s.rows {
		r := s.rows[i]
		if !model.Involves(r, account, s.role) {
			continue
		}
		if latest == nil || r.GetBlockTimestamp() > (*latest).GetBlockTimestamp() {
			latest = &r
		}
	}
	return latest, nil
}

// All returns a copy of every stored row in insertion order.
func (s *Sink[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rows)
}

func (s *Sink[T]) Close() error { return nil }
