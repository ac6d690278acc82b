package llm

import "time"

// Error message templates
const (
	errRateLimiter           = "rate limiter: %w"
	errOpenAIChatCompletion  = "openai chat completion error: %w"
	errGoogleGenAICompletion = "google genai completion: %w"
)

// Model defaults
const (
	defaultGoogleModel = "gemini-1.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
)

// Retry defaults
const (
	// DefaultRetryDelay is the base delay used when the service gives no hint.
	DefaultRetryDelay = 15 * time.Second

	// DefaultMaxRetryDelay caps a single extraction backoff sleep.
	DefaultMaxRetryDelay = 120 * time.Second

	// DefaultMaxAttempts is the extraction attempt budget per call.
	DefaultMaxAttempts = 6

	// DefaultBatchSize is the number of items per batch prompt.
	DefaultBatchSize = 10
)

// Log field names and messages
const (
	logFieldAttempt     = "attempt"
	logFieldMaxAttempts = "max_attempts"
	logFieldDelay       = "delay"
	logFieldProvider    = "provider"
	logFieldRaw         = "raw"

	logMsgRetrying       = "Extraction call failed, retrying"
	logMsgExhausted      = "Extraction retries exhausted"
	logMsgBatchMalformed = "Batch response is not a JSON array"
	logMsgFactMalformed  = "Extraction response is not a JSON object"
)

// rawPreviewLen bounds how much of a malformed response is logged.
const rawPreviewLen = 400

// Metric label values
const (
	statusSuccess = "success"
	statusError   = "error"
)
