package pipeline

import "time"

// Report summarises one run.
type Report struct {
	Mode string

	// StartID is the id the stream resumed after (catch-up only).
	StartID   int64
	Watermark int64

	Seen       int
	Outside    int
	Empty      int
	Duplicates int
	Candidates int
	Appended   int
	Dropped    int
	Failed     int

	// DedupDegraded is set when existing ids could not be read.
	DedupDegraded bool

	// Cursor is the scan cursor saved at the end of the run, if any.
	Cursor      int64
	CursorSaved bool

	Duration time.Duration
}

// StatusReport compares the channel head with the destination table.
type StatusReport struct {
	ChannelLatest int64
	StoreLatest   int64
	TableMissing  bool

	Cursor    int64
	HasCursor bool
}

// Lag is how many ids the table is behind the channel.
func (s StatusReport) Lag() int64 {
	if s.StoreLatest >= s.ChannelLatest {
		return 0
	}

	return s.ChannelLatest - s.StoreLatest
}

// UpToDate reports whether the table holds the channel's latest id or later.
func (s StatusReport) UpToDate() bool {
	return s.StoreLatest >= s.ChannelLatest
}
