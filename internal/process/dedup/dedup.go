// Package dedup tracks which message ids already exist in the destination table.
package dedup

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

const idColumn = 1

// Tracker reads the id column of a table.
type Tracker struct {
	table  ports.Table
	logger *zerolog.Logger
}

// NewTracker creates a Tracker over table.
func NewTracker(table ports.Table, logger *zerolog.Logger) *Tracker {
	return &Tracker{table: table, logger: logger}
}

// Load reads every stored id. The first cell is the header and is skipped, as
// is any cell that is not a non-negative integer literal. A read failure is
// logged and yields an empty, degraded snapshot rather than an error.
func (t *Tracker) Load(ctx context.Context) *Snapshot {
	cells, err := t.table.ColumnValues(ctx, idColumn)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Could not read existing message ids, continuing without dedup")

		snap := NewSnapshot()
		snap.Degraded = true

		return snap
	}

	snap := NewSnapshot()

	if len(cells) > 0 {
		cells = cells[1:]
	}

	skipped := 0

	for _, cell := range cells {
		id, ok := domain.ParseMessageID(cell)
		if !ok {
			skipped++
			continue
		}

		snap.Add(id)
	}

	t.logger.Info().
		Int("existing_ids", snap.Len()).
		Int("skipped_cells", skipped).
		Int64("watermark", snap.Watermark()).
		Msg("Loaded existing message ids")

	return snap
}

// Snapshot is the set of ids present in the table plus their maximum.
type Snapshot struct {
	ids map[int64]struct{}
	max int64

	// Degraded is set when the id column could not be read.
	Degraded bool
}

// NewSnapshot creates a snapshot holding ids.
func NewSnapshot(ids ...int64) *Snapshot {
	s := &Snapshot{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}

	return s
}

// Watermark is the highest stored id, or 0 when none.
func (s *Snapshot) Watermark() int64 {
	return s.max
}

// Contains reports whether id is stored.
func (s *Snapshot) Contains(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records id as stored.
func (s *Snapshot) Add(id int64) {
	s.ids[id] = struct{}{}
	if id > s.max {
		s.max = id
	}
}

// Len returns the number of distinct ids.
func (s *Snapshot) Len() int {
	return len(s.ids)
}
