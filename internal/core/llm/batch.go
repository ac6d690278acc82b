package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/platform/observability"
)

// BatchStatus classifies a batch response.
type BatchStatus string

const (
	// BatchOK means the response was a JSON array; Facts may still be empty.
	BatchOK BatchStatus = "ok"

	// BatchMalformed means the response was not a JSON array at all.
	BatchMalformed BatchStatus = "malformed"
)

// BatchResult maps requested message ids to their extracted facts.
type BatchResult struct {
	Status BatchStatus
	Facts  map[int64]domain.ExtractedFact

	// Rejected counts array elements dropped for a bad id or payload.
	Rejected int
}

// Fact returns the fact for id, if the model returned one.
func (r BatchResult) Fact(id int64) (domain.ExtractedFact, bool) {
	f, ok := r.Facts[id]
	return f, ok
}

// BatchParser extracts facts for up to maxItems messages with one model call.
type BatchParser struct {
	extractor *Extractor
	maxItems  int
	logger    *zerolog.Logger
}

// NewBatchParser creates a BatchParser. maxItems below 1 uses DefaultBatchSize.
func NewBatchParser(extractor *Extractor, maxItems int, logger *zerolog.Logger) *BatchParser {
	if maxItems < 1 {
		maxItems = DefaultBatchSize
	}

	return &BatchParser{extractor: extractor, maxItems: maxItems, logger: logger}
}

// MaxItems returns the batch size limit.
func (p *BatchParser) MaxItems() int {
	return p.maxItems
}

// ParseBatch sends items in one prompt. The error is non-nil only when the
// extractor gave up or the input is invalid; malformed output yields an empty
// BatchMalformed result.
func (p *BatchParser) ParseBatch(ctx context.Context, items []domain.ExtractionItem) (BatchResult, error) {
	if len(items) == 0 {
		return BatchResult{Status: BatchOK, Facts: map[int64]domain.ExtractedFact{}}, nil
	}

	if len(items) > p.maxItems {
		return BatchResult{}, fmt.Errorf("%w: batch of %d exceeds limit %d", errors.ErrInvalidInput, len(items), p.maxItems)
	}

	prompt, err := BuildBatchPrompt(items)
	if err != nil {
		return BatchResult{}, fmt.Errorf("building batch prompt: %w", err)
	}

	text, err := p.extractor.Generate(ctx, prompt)
	if err != nil {
		return BatchResult{}, err
	}

	requested := make([]int64, 0, len(items))
	for _, it := range items {
		requested = append(requested, it.ID)
	}

	result := ParseBatchResponse(text, requested)
	observability.BatchParseTotal.WithLabelValues(string(result.Status)).Inc()

	if result.Status == BatchMalformed {
		p.logger.Warn().Int("items", len(items)).Str(logFieldRaw, preview(text)).Msg(logMsgBatchMalformed)
	}

	return result, nil
}

type batchElement struct {
	ID     json.RawMessage `json:"id"`
	Parsed json.RawMessage `json:"parsed"`
}

// ParseBatchResponse decodes a model answer of the form
// [{"id": <int>, "parsed": {...}}, ...]. Elements whose id is not an integer
// literal, not among requested, or whose parsed value is not an object are
// dropped. When ids repeat, the last element wins.
func ParseBatchResponse(text string, requested []int64) BatchResult {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &elements); err != nil || elements == nil {
		return BatchResult{Status: BatchMalformed, Facts: map[int64]domain.ExtractedFact{}}
	}

	allowed := make(map[int64]struct{}, len(requested))
	for _, id := range requested {
		allowed[id] = struct{}{}
	}

	result := BatchResult{Status: BatchOK, Facts: make(map[int64]domain.ExtractedFact, len(elements))}

	for _, raw := range elements {
		id, fact, ok := decodeElement(raw)
		if !ok {
			result.Rejected++
			continue
		}

		if _, wanted := allowed[id]; !wanted {
			result.Rejected++
			continue
		}

		result.Facts[id] = fact
	}

	return result
}

func decodeElement(raw json.RawMessage) (int64, domain.ExtractedFact, bool) {
	if !isJSONObject(raw) {
		return 0, domain.ExtractedFact{}, false
	}

	var el batchElement
	if err := json.Unmarshal(raw, &el); err != nil {
		return 0, domain.ExtractedFact{}, false
	}

	id, ok := parseIntLiteral(el.ID)
	if !ok || !isJSONObject(el.Parsed) {
		return 0, domain.ExtractedFact{}, false
	}

	var fact domain.ExtractedFact
	if err := json.Unmarshal(el.Parsed, &fact); err != nil {
		return 0, domain.ExtractedFact{}, false
	}

	return id, fact, true
}

// ParseFactResponse decodes a single-message answer that must be a JSON object.
func ParseFactResponse(text string) FactResult {
	clean := stripCodeFence(text)
	if !isJSONObject(json.RawMessage(clean)) {
		return FactResult{Raw: text}
	}

	var fact domain.ExtractedFact
	if err := json.Unmarshal([]byte(clean), &fact); err != nil {
		return FactResult{Raw: text}
	}

	return FactResult{OK: true, Fact: fact, Raw: text}
}

// stripCodeFence removes Markdown code fence markers the model may wrap JSON in.
func stripCodeFence(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")

	return strings.TrimSpace(clean)
}

// parseIntLiteral accepts a bare JSON integer such as 42 or -7. Floats,
// exponents, strings and booleans are rejected.
func parseIntLiteral(raw json.RawMessage) (int64, bool) {
	lit := string(bytes.TrimSpace(raw))
	if lit == "" || strings.ContainsAny(lit, ".eE\"") {
		return 0, false
	}

	id, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= rawPreviewLen {
		return s
	}

	return string(runes[:rawPreviewLen])
}
