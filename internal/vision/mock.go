package vision

import (
	"context"
	"sync"
)

// MockExtractor returns canned responses in order, cycling when exhausted.
// Used by tests that need an extractor without network access.
type MockExtractor struct {
	mu        sync.Mutex
	responses []string
	calls     int

	// Err, when set, is returned by every call instead of a response.
	Err error
}

// NewMockExtractor creates a mock that serves the given responses in order.
func NewMockExtractor(responses ...string) *MockExtractor {
	return &MockExtractor{responses: responses}
}

func (m *MockExtractor) Name() string  { return "mock" }
func (m *MockExtractor) Model() string { return "mock-model" }

// ExtractEnvelope returns the next canned response.
func (m *MockExtractor) ExtractEnvelope(ctx context.Context, _ []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	resp := m.responses[m.calls%len(m.responses)]
	m.calls++
	return resp, nil
}

// Calls reports how many times ExtractEnvelope was invoked.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Extractor = (*MockExtractor)(nil)
