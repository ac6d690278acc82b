// Package pipeline drives messages from the channel through extraction into
// the destination table. Both run modes share one Driver; a Selector picks the
// messages and a Batching decides how they are extracted and written.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
	"github.com/lueurxax/fundraising-ledger/internal/platform/backoff"
	"github.com/lueurxax/fundraising-ledger/internal/platform/observability"
	"github.com/lueurxax/fundraising-ledger/internal/process/dedup"
	"github.com/lueurxax/fundraising-ledger/internal/storage/sink"
)

// Settings configure a Driver.
type Settings struct {
	// Channel identifies the source for the scan cursor.
	Channel string

	// TableKey is the document (spreadsheet id or store key); TableName the sheet.
	TableKey  string
	TableName string

	// HardCap stops a run after this many candidates; 0 means unlimited.
	HardCap int

	// AppendPolicy is the persistence retry policy.
	AppendPolicy backoff.Policy

	// Sleep replaces timers for backoff and cooldown (tests).
	Sleep func(ctx context.Context, d time.Duration) error
}

// Driver runs the pipeline.
type Driver struct {
	source   ports.MessageSource
	tables   ports.TableStore
	cursors  ports.CursorStore
	settings Settings
	logger   *zerolog.Logger
}

// NewDriver creates a Driver. cursors may be nil, which keeps the plain
// max-id watermark behaviour.
func NewDriver(source ports.MessageSource, tables ports.TableStore, cursors ports.CursorStore, settings Settings, logger *zerolog.Logger) *Driver {
	if settings.Sleep == nil {
		settings.Sleep = backoff.Wait
	}

	return &Driver{
		source:   source,
		tables:   tables,
		cursors:  cursors,
		settings: settings,
		logger:   logger,
	}
}

// run is the state owned by a single Run call.
type run struct {
	mode     string
	writer   *sink.Writer
	snapshot *dedup.Snapshot
	report   *Report
	progress *progress
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zerolog.Logger
}

func (r *run) count(outcome string) {
	observability.MessagesTotal.WithLabelValues(r.mode, outcome).Inc()
}

// Run opens the table, fixes its header, loads existing ids, then streams
// messages oldest-first through sel and batching. Rows written before an
// error stay written.
func (d *Driver) Run(ctx context.Context, sel Selector, batching Batching) (Report, error) {
	started := time.Now()
	mode := sel.Mode()
	logger := d.logger.With().Str(LogFieldMode, mode).Logger()
	report := Report{Mode: mode}

	logger.Info().Str("table", d.settings.TableName).Msg("START run")

	table, created, err := d.tables.Open(ctx, d.settings.TableKey, d.settings.TableName)
	if err != nil {
		return report, fmt.Errorf("opening table %s: %w", d.settings.TableName, err)
	}

	logger.Info().Bool("created", created).Msg("Opened table")

	writer := sink.NewWriter(table, created, d.settings.AppendPolicy, &logger, sink.WithSleep(d.settings.Sleep))
	if err := writer.EnsureHeader(ctx); err != nil {
		return report, err
	}

	snapshot := dedup.NewTracker(table, &logger).Load(ctx)
	report.Watermark = snapshot.Watermark()
	report.DedupDegraded = snapshot.Degraded
	observability.WatermarkGauge.Set(float64(report.Watermark))

	resume := Resume{Watermark: snapshot.Watermark()}
	useCursor := d.cursors != nil && sel.UsesCursor()

	if useCursor {
		resume.Cursor, resume.HasCursor = d.loadCursor(ctx, &logger)
	}

	query := sel.Query(resume)
	report.StartID = query.MinID

	logger.Info().
		Int64(LogFieldWatermark, resume.Watermark).
		Int64("start_after", query.MinID).
		Time("since", query.Since).
		Msg("Last stored message_id")

	r := &run{
		mode:     mode,
		writer:   writer,
		snapshot: snapshot,
		report:   &report,
		progress: newProgress(query.MinID),
		sleep:    d.settings.Sleep,
		logger:   &logger,
	}

	b := batching.newBatcher(r)

	streamErr := d.stream(ctx, query, sel, r, b)
	if streamErr == nil {
		streamErr = b.Flush(ctx)
	}

	if useCursor {
		d.saveCursor(ctx, r, &logger)
	}

	report.Duration = time.Since(started)

	if streamErr != nil {
		logger.Error().Err(streamErr).Int("appended", report.Appended).Msg("Run aborted")

		return report, streamErr
	}

	logger.Info().
		Int("seen", report.Seen).
		Int(LogFieldCandidates, report.Candidates).
		Int("appended", report.Appended).
		Int("duplicates", report.Duplicates).
		Int("dropped", report.Dropped).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msgf("DONE. Appended %d new rows", report.Appended)

	return report, nil
}

func (d *Driver) stream(ctx context.Context, query ports.MessageQuery, sel Selector, r *run, b batcher) error {
	it := d.source.Messages(query)

	for it.Next(ctx) {
		msg := it.Value()
		r.report.Seen++

		switch sel.Admit(msg) {
		case Skip:
			r.report.Outside++
			r.count(observability.OutcomeOutside)

			continue
		case Stop:
			r.logger.Debug().Int64(LogFieldMsgID, msg.ID).Time("date", msg.Date).Msg("Reached end of window")

			return nil
		case Admit:
		}

		if !msg.HasText() {
			r.report.Empty++
			r.count(observability.OutcomeEmpty)
			r.progress.resolve(msg.ID)

			continue
		}

		if r.snapshot.Contains(msg.ID) {
			r.report.Duplicates++
			r.count(observability.OutcomeDuplicate)
			r.progress.resolve(msg.ID)
			r.logger.Info().Int64(LogFieldMsgID, msg.ID).Msg(LogMsgDuplicate)

			continue
		}

		r.report.Candidates++

		if err := b.Add(ctx, msg); err != nil {
			return err
		}

		if d.settings.HardCap > 0 && r.report.Candidates >= d.settings.HardCap {
			r.logger.Info().Int(LogFieldCandidates, r.report.Candidates).Msg("Message hard cap reached")

			return nil
		}
	}

	if err := it.Err(); err != nil {
		return fmt.Errorf("reading channel messages: %w", err)
	}

	return nil
}

func (d *Driver) loadCursor(ctx context.Context, logger *zerolog.Logger) (int64, bool) {
	id, found, err := d.cursors.Cursor(ctx, d.settings.Channel, d.cursorTable())
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read scan cursor, using watermark")

		return 0, false
	}

	if found {
		logger.Info().Int64(LogFieldCursor, id).Msg("Loaded scan cursor")
	}

	return id, found
}

func (d *Driver) cursorTable() string {
	return d.settings.TableKey + "/" + d.settings.TableName
}

func (d *Driver) saveCursor(ctx context.Context, r *run, logger *zerolog.Logger) {
	if !r.progress.advanced() {
		return
	}

	// A canceled run still records how far it got.
	saveCtx := context.WithoutCancel(ctx)

	if err := d.cursors.SaveCursor(saveCtx, d.settings.Channel, d.cursorTable(), r.progress.frontier); err != nil {
		logger.Warn().Err(err).Msg("Could not save scan cursor")

		return
	}

	r.report.Cursor = r.progress.frontier
	r.report.CursorSaved = true

	logger.Info().Int64(LogFieldCursor, r.progress.frontier).Msg("Saved scan cursor")
}

// Status compares the channel head with the table's highest id. It never
// creates the table or writes to it.
func (d *Driver) Status(ctx context.Context) (StatusReport, error) {
	var status StatusReport

	latest, err := d.source.LatestMessageID(ctx)
	if err != nil {
		return status, fmt.Errorf("reading latest channel message: %w", err)
	}

	status.ChannelLatest = latest

	table, err := d.tables.Find(ctx, d.settings.TableKey, d.settings.TableName)

	switch {
	case errors.Is(err, errors.ErrTableNotFound):
		status.TableMissing = true
	case err != nil:
		return status, fmt.Errorf("opening table %s: %w", d.settings.TableName, err)
	default:
		status.StoreLatest = dedup.NewTracker(table, d.logger).Load(ctx).Watermark()
	}

	if d.cursors != nil {
		status.Cursor, status.HasCursor = d.loadCursor(ctx, d.logger)
	}

	return status, nil
}

// progress tracks the scan cursor: the highest id below which every message
// was resolved (written, duplicate or deliberately skipped). It stops moving
// at the first message that failed extraction.
type progress struct {
	start    int64
	frontier int64
	blocked  bool
}

func newProgress(start int64) *progress {
	return &progress{start: start, frontier: start}
}

func (p *progress) resolve(id int64) {
	if !p.blocked && id > p.frontier {
		p.frontier = id
	}
}

func (p *progress) block() {
	p.blocked = true
}

func (p *progress) advanced() bool {
	return p.frontier > p.start
}

// row builds the output row for msg.
func (r *run) row(msg domain.RawMessage, fact domain.ExtractedFact) domain.OutputRow {
	return domain.BuildRow(msg, CleanText(msg.Text), fact)
}
