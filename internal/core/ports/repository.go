// Package ports provides domain-centric interfaces for external dependencies.
// These interfaces follow the ports and adapters (hexagonal) architecture pattern,
// allowing the pipeline to remain independent of Telegram, the LLM vendor and the
// spreadsheet backend.
package ports

import (
	"context"
	"time"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
)

// MessageQuery selects channel messages. Results are always oldest-first.
type MessageQuery struct {
	// MinID excludes messages with id <= MinID. Zero means no lower bound.
	MinID int64

	// Since starts enumeration at this instant. Zero means the channel start.
	// Messages before Since may still be yielded; callers filter by date.
	Since time.Time
}

// MessageIterator walks messages lazily. Callers stop early simply by not
// calling Next again.
type MessageIterator interface {
	Next(ctx context.Context) bool
	Value() domain.RawMessage
	Err() error
}

// MessageSource enumerates messages of the configured channel.
type MessageSource interface {
	Messages(q MessageQuery) MessageIterator
	LatestMessageID(ctx context.Context) (int64, error)
}

// ValueInputMode controls how the store interprets written cells.
type ValueInputMode string

const (
	// ValueInputRaw stores cells literally.
	ValueInputRaw ValueInputMode = "RAW"

	// ValueInputUserEntered lets the store parse numbers, dates and formulas.
	ValueInputUserEntered ValueInputMode = "USER_ENTERED"
)

// Table is one worksheet or table of the destination store.
// Rows and columns are 1-based; row 1 is the header.
type Table interface {
	ColumnValues(ctx context.Context, col int) ([]string, error)
	HeaderRow(ctx context.Context) ([]string, error)
	UpdateRow(ctx context.Context, row int, values []string, mode ValueInputMode) error
	AppendRows(ctx context.Context, rows [][]string, mode ValueInputMode) error
}

// TableStore locates named tables inside a document/key.
type TableStore interface {
	// Open returns the table, creating it when missing.
	Open(ctx context.Context, key, name string) (table Table, created bool, err error)

	// Find returns the table without creating it; a missing table yields
	// errors.ErrTableNotFound.
	Find(ctx context.Context, key, name string) (Table, error)
}

// CursorStore persists how far catch-up has scanned a channel for a given table.
type CursorStore interface {
	Cursor(ctx context.Context, channel, table string) (id int64, found bool, err error)
	SaveCursor(ctx context.Context, channel, table string, id int64) error
}
