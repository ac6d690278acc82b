package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/platform/backoff"
	"github.com/lueurxax/fundraising-ledger/internal/platform/observability"
	"github.com/lueurxax/fundraising-ledger/internal/platform/ratelimit"
)

// FactResult is the outcome of a single-message extraction. OK is false when
// the model answered with something that is not a JSON object.
type FactResult struct {
	OK   bool
	Fact domain.ExtractedFact
	Raw  string
}

// Extractor wraps a Generator with the RPM window and capped exponential
// backoff. Every attempt, retries included, takes a slot in the window.
type Extractor struct {
	gen            Generator
	window         *ratelimit.Window
	policy         backoff.Policy
	requestTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *zerolog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithRequestTimeout bounds each individual model call.
func WithRequestTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) { e.requestTimeout = d }
}

// WithSleep replaces the backoff timer (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ExtractorOption {
	return func(e *Extractor) { e.sleep = fn }
}

// NewExtractor creates an Extractor. Zero policy fields fall back to the
// extraction defaults (15s base, 120s cap, 6 attempts).
func NewExtractor(gen Generator, window *ratelimit.Window, policy backoff.Policy, logger *zerolog.Logger, opts ...ExtractorOption) *Extractor {
	if policy.Base <= 0 {
		policy.Base = DefaultRetryDelay
	}

	if policy.Cap <= 0 {
		policy.Cap = DefaultMaxRetryDelay
	}

	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}

	e := &Extractor{
		gen:    gen,
		window: window,
		policy: policy,
		sleep:  backoff.Wait,
		logger: logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Generate sends prompt through the window and retries failures. Empty model
// text is returned as "". Exhaustion wraps ErrRetriesExhausted.
func (e *Extractor) Generate(ctx context.Context, prompt string) (string, error) {
	provider := string(e.gen.Name())

	var text string

	retrier := backoff.Retrier{
		Policy: e.policy,
		Hint:   ParseRetryDelay,
		Retryable: func(error) bool {
			return ctx.Err() == nil
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			observability.LLMRetriesTotal.Inc()
			e.logger.Warn().
				Err(err).
				Str(logFieldProvider, provider).
				Int(logFieldAttempt, attempt).
				Int(logFieldMaxAttempts, e.policy.MaxAttempts).
				Dur(logFieldDelay, delay).
				Msg(logMsgRetrying)
		},
		Sleep: e.sleep,
	}

	err := retrier.Do(ctx, func(ctx context.Context) error {
		out, err := e.attempt(ctx, provider, prompt)
		if err != nil {
			return err
		}

		text = out

		return nil
	})
	if err != nil {
		var exhausted *backoff.ExhaustedError
		if errors.As(err, &exhausted) {
			e.logger.Error().Err(exhausted.Err).Str(logFieldProvider, provider).Int(logFieldAttempt, exhausted.Attempts).Msg(logMsgExhausted)

			return "", fmt.Errorf("%w: %w", errors.ErrRetriesExhausted, exhausted.Err)
		}

		return "", err
	}

	return text, nil
}

func (e *Extractor) attempt(ctx context.Context, provider, prompt string) (string, error) {
	waitStart := time.Now()

	if err := e.window.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	observability.RateLimitWaitSeconds.Observe(time.Since(waitStart).Seconds())

	callCtx := ctx

	if e.requestTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, e.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := e.gen.Generate(callCtx, prompt)
	observability.LLMRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.LLMCallsTotal.WithLabelValues(provider, statusError).Inc()

		return "", err
	}

	observability.LLMCallsTotal.WithLabelValues(provider, statusSuccess).Inc()

	return out, nil
}

// ExtractOne runs the single-message prompt for text. A malformed answer is
// reported through FactResult.OK, not as an error.
func (e *Extractor) ExtractOne(ctx context.Context, text string) (FactResult, error) {
	raw, err := e.Generate(ctx, BuildSinglePrompt(text))
	if err != nil {
		return FactResult{}, err
	}

	result := ParseFactResponse(raw)
	if !result.OK {
		e.logger.Warn().Str(logFieldRaw, preview(raw)).Msg(logMsgFactMalformed)
	}

	return result, nil
}
