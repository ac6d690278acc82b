package pipeline

import (
	"time"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

// Admission is a selector's verdict on one streamed message.
type Admission int

const (
	// Admit passes the message on to dedup and extraction.
	Admit Admission = iota

	// Skip ignores the message and keeps streaming.
	Skip

	// Stop ends the stream; the message is not processed.
	Stop
)

// Resume describes where earlier runs left off.
type Resume struct {
	Watermark int64
	Cursor    int64
	HasCursor bool
}

// Selector decides which messages a run looks at.
type Selector interface {
	Mode() string
	Query(r Resume) ports.MessageQuery
	Admit(msg domain.RawMessage) Admission
	UsesCursor() bool
}

// WatermarkSelector streams everything newer than the stored watermark, or
// newer than the scan cursor when that is further behind.
type WatermarkSelector struct{}

// Mode implements Selector.
func (WatermarkSelector) Mode() string { return ModeCatchup }

// Query implements Selector.
func (WatermarkSelector) Query(r Resume) ports.MessageQuery {
	start := r.Watermark
	if r.HasCursor && r.Cursor < start {
		start = r.Cursor
	}

	return ports.MessageQuery{MinID: start}
}

// Admit implements Selector.
func (WatermarkSelector) Admit(domain.RawMessage) Admission { return Admit }

// UsesCursor implements Selector.
func (WatermarkSelector) UsesCursor() bool { return true }

// WindowSelector streams messages dated within [From, To], both inclusive.
type WindowSelector struct {
	From time.Time
	To   time.Time
}

// Mode implements Selector.
func (WindowSelector) Mode() string { return ModeBackfill }

// Query implements Selector.
func (s WindowSelector) Query(Resume) ports.MessageQuery {
	return ports.MessageQuery{Since: s.From}
}

// Admit implements Selector. Messages arrive oldest-first, so the first one
// past To ends the run.
func (s WindowSelector) Admit(msg domain.RawMessage) Admission {
	switch {
	case msg.Date.Before(s.From):
		return Skip
	case msg.Date.After(s.To):
		return Stop
	default:
		return Admit
	}
}

// UsesCursor implements Selector.
func (WindowSelector) UsesCursor() bool { return false }
