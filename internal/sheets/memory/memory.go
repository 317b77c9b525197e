// Package memory keeps mirrored tables in process, for tests and for runs
// without a spreadsheet.
package memory

import (
	"context"
	"sync"
)

type Store struct {
	mu     sync.Mutex
	tables map[int][][]any
	writes int
}

func New() *Store {
	return &Store{tables: make(map[int][][]any)}
}

// WriteTable replaces the table stored for year.
func (s *Store) WriteTable(_ context.Context, year int, rows [][]any) error {
	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = append([]any(nil), r...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[year] = cp
	s.writes++
	return nil
}

// Table returns the rows last written for year.
func (s *Store) Table(year int) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[year]
	return rows, ok
}

// Writes counts WriteTable calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
