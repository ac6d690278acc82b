package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

// MessageSource is an in-memory ports.MessageSource over a fixed message list.
type MessageSource struct {
	mu       sync.Mutex
	messages []domain.RawMessage
	yielded  int
	queries  []ports.MessageQuery

	// FailAfter makes iteration fail with ErrInjected after this many messages
	// when positive.
	FailAfter int

	// LatestMessageIDFn allows overriding LatestMessageID behavior.
	LatestMessageIDFn func(ctx context.Context) (int64, error)
}

// NewMessageSource creates a source holding msgs (sorted by id).
func NewMessageSource(msgs ...domain.RawMessage) *MessageSource {
	s := &MessageSource{}
	s.Add(msgs...)

	return s
}

// Add appends messages, keeping id order.
func (s *MessageSource) Add(msgs ...domain.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msgs...)
	sort.Slice(s.messages, func(i, j int) bool { return s.messages[i].ID < s.messages[j].ID })
}

// Messages implements ports.MessageSource.
func (s *MessageSource) Messages(q ports.MessageQuery) ports.MessageIterator {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, q)

	var selected []domain.RawMessage

	for _, m := range s.messages {
		if m.ID <= q.MinID {
			continue
		}

		if !q.Since.IsZero() && m.Date.Before(q.Since) {
			continue
		}

		selected = append(selected, m)
	}

	return &sliceIterator{source: s, messages: selected, pos: -1}
}

// LatestMessageID implements ports.MessageSource.
func (s *MessageSource) LatestMessageID(ctx context.Context) (int64, error) {
	if s.LatestMessageIDFn != nil {
		return s.LatestMessageIDFn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return 0, nil
	}

	return s.messages[len(s.messages)-1].ID, nil
}

// Yielded returns how many messages iterators have produced in total.
func (s *MessageSource) Yielded() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.yielded
}

// Queries returns the queries issued so far.
func (s *MessageSource) Queries() []ports.MessageQuery {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ports.MessageQuery(nil), s.queries...)
}

type sliceIterator struct {
	source   *MessageSource
	messages []domain.RawMessage
	pos      int
	err      error
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}

	if it.pos+1 >= len(it.messages) {
		return false
	}

	it.source.mu.Lock()
	defer it.source.mu.Unlock()

	if it.source.FailAfter > 0 && it.source.yielded >= it.source.FailAfter {
		it.err = ErrInjected
		return false
	}

	it.pos++
	it.source.yielded++

	return true
}

func (it *sliceIterator) Value() domain.RawMessage {
	if it.pos < 0 || it.pos >= len(it.messages) {
		return domain.RawMessage{}
	}

	return it.messages[it.pos]
}

func (it *sliceIterator) Err() error {
	return it.err
}
