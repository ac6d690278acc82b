// Package telegram reads channel history over MTProto.
package telegram

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
	"github.com/lueurxax/fundraising-ledger/internal/platform/backoff"
)

const (
	// DefaultPageSize is the getHistory page limit.
	DefaultPageSize = 100

	// maxFloodWaits bounds consecutive FLOOD_WAIT retries of one request.
	maxFloodWaits = 5

	floodWaitType = "FLOOD_WAIT"
)

// API is the part of the MTProto client the source uses.
type API interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
}

// Source implements ports.MessageSource for one public channel.
type Source struct {
	api      API
	username string
	pageSize int
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zerolog.Logger

	mu   sync.Mutex
	peer *tg.InputPeerChannel
}

// Option configures a Source.
type Option func(*Source)

// WithPageSize sets the getHistory page limit.
func WithPageSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithRateLimit paces page requests to rps per second.
func WithRateLimit(rps int) Option {
	return func(s *Source) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithSleep replaces the FLOOD_WAIT timer (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Source) {
		s.sleep = fn
	}
}

// NewSource creates a Source reading the channel @username.
func NewSource(api API, username string, logger *zerolog.Logger, opts ...Option) *Source {
	s := &Source{
		api:      api,
		username: username,
		pageSize: DefaultPageSize,
		limiter:  rate.NewLimiter(rate.Limit(1), 1),
		sleep:    backoff.Wait,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var _ ports.MessageSource = (*Source)(nil)

// Messages returns an oldest-first iterator over the channel.
func (s *Source) Messages(q ports.MessageQuery) ports.MessageIterator {
	return &historyIterator{source: s, query: q, lastID: q.MinID}
}

// LatestMessageID returns the id of the newest message in the channel.
func (s *Source) LatestMessageID(ctx context.Context) (int64, error) {
	peer, err := s.resolve(ctx)
	if err != nil {
		return 0, err
	}

	msgs, err := s.history(ctx, &tg.MessagesGetHistoryRequest{Peer: peer, Limit: 1})
	if err != nil {
		return 0, err
	}

	var latest int64

	for _, m := range msgs {
		latest = max(latest, int64(m.GetID()))
	}

	return latest, nil
}

func (s *Source) resolve(ctx context.Context) (*tg.InputPeerChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.peer != nil {
		return s.peer, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resolved, err := s.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: s.username})
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return nil, fmt.Errorf("%w: @%s", errors.ErrChannelNotFound, s.username)
		}

		return nil, fmt.Errorf("failed to resolve @%s: %w", s.username, err)
	}

	if len(resolved.Chats) == 0 {
		return nil, fmt.Errorf("%w: @%s", errors.ErrChannelNotFound, s.username)
	}

	for _, chat := range resolved.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			s.peer = &tg.InputPeerChannel{
				ChannelID:  channel.ID,
				AccessHash: channel.AccessHash,
			}

			s.logger.Info().Str("channel", s.username).Int64("peer_id", channel.ID).Str("title", channel.Title).Msg("Resolved channel")

			return s.peer, nil
		}
	}

	return nil, fmt.Errorf("%w: @%s", errors.ErrNotAChannel, s.username)
}

// history runs one getHistory request, waiting out FLOOD_WAIT answers.
func (s *Source) history(ctx context.Context, req *tg.MessagesGetHistoryRequest) ([]tg.MessageClass, error) {
	for waits := 0; ; waits++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		res, err := s.api.MessagesGetHistory(ctx, req)
		if err == nil {
			return pageMessages(res), nil
		}

		floodErr, ok := tgerr.As(err)
		if !ok || floodErr.Type != floodWaitType || waits >= maxFloodWaits {
			return nil, fmt.Errorf("failed to get history: %w", err)
		}

		s.logger.Warn().Int("seconds", floodErr.Argument).Str("channel", s.username).Msg("flood wait")

		if err := s.sleep(ctx, time.Duration(floodErr.Argument)*time.Second); err != nil {
			return nil, err
		}
	}
}

func pageMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch h := res.(type) {
	case *tg.MessagesMessages:
		return h.Messages
	case *tg.MessagesMessagesSlice:
		return h.Messages
	case *tg.MessagesChannelMessages:
		return h.Messages
	default:
		return nil
	}
}

// historyIterator pages forward through the channel: each request asks for
// the pageSize messages just after the last one seen.
type historyIterator struct {
	source *Source
	query  ports.MessageQuery

	page    []domain.RawMessage
	current domain.RawMessage
	lastID  int64
	started bool
	done    bool
	err     error
}

func (it *historyIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	for len(it.page) == 0 {
		if it.done {
			return false
		}

		if err := ctx.Err(); err != nil {
			it.err = err
			return false
		}

		if err := it.fetch(ctx); err != nil {
			it.err = err
			return false
		}
	}

	it.current = it.page[0]
	it.page = it.page[1:]

	return true
}

func (it *historyIterator) Value() domain.RawMessage {
	return it.current
}

func (it *historyIterator) Err() error {
	return it.err
}

func (it *historyIterator) fetch(ctx context.Context) error {
	s := it.source

	peer, err := s.resolve(ctx)
	if err != nil {
		return err
	}

	req := &tg.MessagesGetHistoryRequest{
		Peer:      peer,
		Limit:     s.pageSize,
		AddOffset: -s.pageSize,
		MinID:     int(it.query.MinID),
	}

	switch {
	case it.started || it.lastID > 0:
		req.OffsetID = int(it.lastID) + 1
	case !it.query.Since.IsZero():
		req.OffsetDate = int(it.query.Since.Unix())
	default:
		req.OffsetID = 1
	}

	it.started = true

	msgs, err := s.history(ctx, req)
	if err != nil {
		return err
	}

	page := make([]domain.RawMessage, 0, len(msgs))
	highest := it.lastID

	for _, m := range msgs {
		id := int64(m.GetID())
		if id <= it.lastID {
			continue
		}

		highest = max(highest, id)

		// Service and deleted messages only move the offset.
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}

		page = append(page, domain.RawMessage{
			ID:   id,
			Date: time.Unix(int64(msg.Date), 0).UTC(),
			Text: msg.Message,
		})
	}

	if highest == it.lastID {
		it.done = true
		return nil
	}

	slices.SortFunc(page, func(a, b domain.RawMessage) int {
		return cmp.Compare(a.ID, b.ID)
	})

	s.logger.Debug().Str("channel", s.username).Int64("after_id", it.lastID).Int("count", len(page)).Msg("Fetched history page")

	it.lastID = highest
	it.page = page

	return nil
}
