package memory

import (
	"context"
	"fmt"
	"sync"

	"finanzas/internal/core"
	"finanzas/internal/sheets"
)

// Store keeps mirrored rows in process. It backs local runs without Google
// credentials and the worker tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the row and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if t.ID == "" {
		return "", fmt.Errorf("%w: transaction without id", core.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(t.ID); i >= 0 {
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, sheets.Row(t))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", sheets.ErrRowNotFound, id)
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return nil
}

// Rows returns a copy of the mirrored rows in insertion order.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}

// IDs returns the transaction id of every row.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r[0].(string))
	}
	return out
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.rows {
		if r[0] == id {
			return i
		}
	}
	return -1
}
