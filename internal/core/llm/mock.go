package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
)

// MockGenerator implements Generator without network access. By default it
// answers batch prompts with one empty fact per requested id and single
// prompts with an empty object; Responses and Errors script it for tests.
type MockGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string

	// Responses are returned in order; once exhausted the default answer is used.
	Responses []string

	// Errors are returned in order before any response; nil entries fall through.
	Errors []error

	// GenerateFn overrides everything above when set.
	GenerateFn func(ctx context.Context, call int, prompt string) (string, error)
}

// NewMockGenerator creates a mock generator with default answers.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Name returns the provider identifier.
func (m *MockGenerator) Name() ProviderName {
	return ProviderMock
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, call, prompt)
	}

	if call <= len(m.Errors) && m.Errors[call-1] != nil {
		return "", m.Errors[call-1]
	}

	idx := call - 1 - len(m.Errors)
	if idx >= 0 && idx < len(m.Responses) {
		return m.Responses[idx], nil
	}

	return defaultMockAnswer(prompt), nil
}

// Close implements Generator.
func (m *MockGenerator) Close() error {
	return nil
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// Prompts returns every prompt received.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.prompts...)
}

var mockItemIDPattern = regexp.MustCompile(`"id":\s*(\d+)`)

func defaultMockAnswer(prompt string) string {
	matches := mockItemIDPattern.FindAllStringSubmatch(prompt, -1)
	if len(matches) == 0 {
		return "{}"
	}

	type element struct {
		ID     int64          `json:"id"`
		Parsed map[string]any `json:"parsed"`
	}

	out := make([]element, 0, len(matches))

	for _, m := range matches {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}

		out = append(out, element{ID: id, Parsed: map[string]any{}})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}

	return string(data)
}
