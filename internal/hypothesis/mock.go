package hypothesis

import (
	"context"
	"errors"
	"sync"
)

// MockProvider replays scripted responses and errors in call order. Tests
// drive the generator and the engine with it; no network involved. When the
// script runs out the last response repeats, so multi-iteration runs stay
// scriptable with a single response.
type MockProvider struct {
	Responses []string
	Errs      []error

	mu      sync.Mutex
	calls   int
	prompts []string
}

func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (p *MockProvider) Complete(_ context.Context, _, user string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.calls
	p.calls++
	p.prompts = append(p.prompts, user)

	if i < len(p.Errs) && p.Errs[i] != nil {
		return "", p.Errs[i]
	}
	if i < len(p.Responses) {
		return p.Responses[i], nil
	}
	if len(p.Responses) > 0 {
		return p.Responses[len(p.Responses)-1], nil
	}
	return "", errors.New("mock provider: script exhausted")
}

func (p *MockProvider) Name() string { return "mock" }

// Calls returns how many times Complete ran.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Prompts returns the user prompts seen so far, in call order.
func (p *MockProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}
