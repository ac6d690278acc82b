package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/llm"
	"github.com/lueurxax/fundraising-ledger/internal/platform/observability"
)

// SingleExtractor extracts one message per model call.
type SingleExtractor interface {
	ExtractOne(ctx context.Context, text string) (llm.FactResult, error)
}

// BatchExtractor extracts up to MaxItems messages per model call.
type BatchExtractor interface {
	ParseBatch(ctx context.Context, items []domain.ExtractionItem) (llm.BatchResult, error)
	MaxItems() int
}

// Batching decides how candidates are extracted and written.
type Batching interface {
	newBatcher(r *run) batcher
}

type batcher interface {
	Add(ctx context.Context, msg domain.RawMessage) error
	Flush(ctx context.Context) error
}

// Single extracts each candidate as it streams in and appends its row right
// away. Extraction failures skip the message; append failures end the run.
type Single struct {
	Extractor SingleExtractor
}

func (s Single) newBatcher(r *run) batcher {
	return &singleBatcher{extractor: s.Extractor, run: r}
}

type singleBatcher struct {
	extractor SingleExtractor
	run       *run
}

func (b *singleBatcher) Add(ctx context.Context, msg domain.RawMessage) error {
	r := b.run
	r.logger.Info().Int64(LogFieldMsgID, msg.ID).Msg(LogMsgProcessed)

	res, err := b.extractor.ExtractOne(ctx, CleanText(msg.Text))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("extracting message %d: %w", msg.ID, err)
		}

		r.report.Failed++
		r.count(observability.OutcomeFailed)
		r.progress.block()
		r.logger.Error().Err(err).Int64(LogFieldMsgID, msg.ID).Msg(LogMsgExtractFailed)

		return nil
	}

	if !res.OK {
		r.report.Failed++
		r.count(observability.OutcomeFailed)
		r.progress.block()
		r.logger.Warn().Int64(LogFieldMsgID, msg.ID).Msg(LogMsgExtractNoObject)

		return nil
	}

	if res.Fact.IsEmpty() {
		r.report.Dropped++
		r.count(observability.OutcomeDropped)
		r.progress.resolve(msg.ID)
		r.logger.Info().Int64(LogFieldMsgID, msg.ID).Msg(LogMsgNoFacts)

		return nil
	}

	if err := r.writer.Append(ctx, []domain.OutputRow{r.row(msg, res.Fact)}); err != nil {
		return fmt.Errorf("appending message %d: %w", msg.ID, err)
	}

	r.snapshot.Add(msg.ID)
	r.progress.resolve(msg.ID)
	r.report.Appended++
	r.count(observability.OutcomeAppended)
	r.logger.Info().Int64(LogFieldMsgID, msg.ID).Msg(LogMsgAppendedOne)

	return nil
}

func (b *singleBatcher) Flush(context.Context) error {
	return nil
}

// Chunked collects every candidate first, extracts them in chunks of the
// parser's MaxItems, and appends rows in buffers of AppendSize with a
// Cooldown pause after each full buffer.
type Chunked struct {
	Parser     BatchExtractor
	AppendSize int
	Cooldown   time.Duration
}

func (c Chunked) newBatcher(r *run) batcher {
	size := c.AppendSize
	if size <= 0 {
		size = DefaultAppendBatchSize
	}

	return &chunkedBatcher{
		parser:     c.Parser,
		appendSize: size,
		cooldown:   c.Cooldown,
		run:        r,
	}
}

type chunkedBatcher struct {
	parser     BatchExtractor
	appendSize int
	cooldown   time.Duration
	run        *run

	candidates []domain.RawMessage
	buffer     []domain.OutputRow
}

func (b *chunkedBatcher) Add(_ context.Context, msg domain.RawMessage) error {
	b.candidates = append(b.candidates, msg)
	return nil
}

func (b *chunkedBatcher) Flush(ctx context.Context) error {
	r := b.run
	r.logger.Info().Int(LogFieldCandidates, len(b.candidates)).Msg("Found messages to process after filtering")

	chunkSize := b.parser.MaxItems()
	if chunkSize < 1 {
		chunkSize = llm.DefaultBatchSize
	}

	for start := 0; start < len(b.candidates); start += chunkSize {
		end := min(start+chunkSize, len(b.candidates))

		if err := b.extractChunk(ctx, b.candidates[start:end]); err != nil {
			// Keep whatever was extracted before giving up.
			if ctx.Err() == nil {
				if flushErr := b.appendBuffer(ctx); flushErr != nil {
					r.logger.Error().Err(flushErr).Msg("Could not flush buffered rows")
				}
			}

			return err
		}
	}

	return b.appendBuffer(ctx)
}

func (b *chunkedBatcher) extractChunk(ctx context.Context, chunk []domain.RawMessage) error {
	r := b.run

	items := make([]domain.ExtractionItem, 0, len(chunk))

	for _, msg := range chunk {
		cleaned := CleanText(msg.Text)
		if cleaned == "" {
			continue
		}

		items = append(items, domain.NewExtractionItem(msg.ID, cleaned))
	}

	if len(items) == 0 {
		return nil
	}

	result, err := b.parser.ParseBatch(ctx, items)
	if err != nil {
		r.report.Failed += len(items)
		observability.MessagesTotal.WithLabelValues(r.mode, observability.OutcomeFailed).Add(float64(len(items)))

		return fmt.Errorf("extracting batch starting at message %d: %w", chunk[0].ID, err)
	}

	for _, msg := range chunk {
		fact, ok := result.Fact(msg.ID)
		if !ok || fact.IsEmpty() {
			r.report.Dropped++
			r.count(observability.OutcomeDropped)

			continue
		}

		b.buffer = append(b.buffer, r.row(msg, fact))
		r.snapshot.Add(msg.ID)

		if len(b.buffer) >= b.appendSize {
			if err := b.appendBuffer(ctx); err != nil {
				return err
			}

			r.logger.Info().Int(LogFieldCount, r.report.Appended).Msg(LogMsgAppendedSoFar)

			if err := r.sleep(ctx, b.cooldown); err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *chunkedBatcher) appendBuffer(ctx context.Context) error {
	if len(b.buffer) == 0 {
		return nil
	}

	r := b.run

	if err := r.writer.Append(ctx, b.buffer); err != nil {
		return fmt.Errorf("appending %d rows: %w", len(b.buffer), err)
	}

	r.report.Appended += len(b.buffer)
	observability.MessagesTotal.WithLabelValues(r.mode, observability.OutcomeAppended).Add(float64(len(b.buffer)))
	b.buffer = b.buffer[:0]

	return nil
}
