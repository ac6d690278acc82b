package pipeline

import "time"

// Run modes
const (
	ModeCatchup  = "catchup"
	ModeBackfill = "backfill"
)

// Defaults for chunked runs
const (
	DefaultAppendBatchSize = 20
	DefaultAppendCooldown  = 2 * time.Second
)

// Log field constants
const (
	LogFieldMsgID      = "msg_id"
	LogFieldMode       = "mode"
	LogFieldCount      = "count"
	LogFieldWatermark  = "watermark"
	LogFieldCursor     = "cursor"
	LogFieldCandidates = "candidates"
)

// Log message constants
const (
	LogMsgDuplicate       = "Skipped message, duplicate"
	LogMsgProcessed       = "Processed message"
	LogMsgExtractFailed   = "Extraction failed, skipping message"
	LogMsgExtractNoObject = "Extraction returned no object, skipping message"
	LogMsgNoFacts         = "No fundraising facts extracted"
	LogMsgAppendedOne     = "Appended 1 row"
	LogMsgAppendedSoFar   = "Appended rows so far, throttling"
)
