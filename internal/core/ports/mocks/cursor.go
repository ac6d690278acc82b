package mocks

import (
	"context"
	"sync"
)

// CursorStore is an in-memory ports.CursorStore.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[string]int64
	saves   int

	// SaveCursorFn allows overriding SaveCursor behavior.
	SaveCursorFn func(ctx context.Context, channel, table string, id int64) error
}

// NewCursorStore creates an empty CursorStore.
func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: make(map[string]int64)}
}

// Cursor implements ports.CursorStore.
func (s *CursorStore) Cursor(_ context.Context, channel, table string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.cursors[channel+"|"+table]

	return id, ok, nil
}

// SaveCursor implements ports.CursorStore.
func (s *CursorStore) SaveCursor(ctx context.Context, channel, table string, id int64) error {
	if s.SaveCursorFn != nil {
		if err := s.SaveCursorFn(ctx, channel, table, id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[channel+"|"+table] = id
	s.saves++

	return nil
}

// Saves returns how many times SaveCursor stored a value.
func (s *CursorStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saves
}
