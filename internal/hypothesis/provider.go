// Package hypothesis is the only non-deterministic boundary of the
// pipeline. An external reasoning service proposes candidate hypotheses
// over the normalized evidence; everything it returns is strictly parsed
// and validated before the deterministic scorer sees it. A service
// failure degrades to a deterministic heuristic candidate, never to a
// failed investigation.
package hypothesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Provider is one reasoning service. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Complete sends one system+user prompt pair and returns the raw
	// text completion.
	Complete(ctx context.Context, system, user string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// AnthropicProvider implements Provider using the Anthropic API.
// Temperature is pinned to zero; the candidate generator is the only
// non-deterministic stage and it should be as repeatable as the service
// allows.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicProvider builds a provider reading the API key from the
// ANTHROPIC_API_KEY environment variable.
func NewAnthropicProvider(model string) *AnthropicProvider {
	return &AnthropicProvider{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: 4096,
	}
}

// NewAnthropicProviderWithKey builds a provider with an explicit API key.
func NewAnthropicProviderWithKey(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
	}
}

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var textParts []string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	return strings.Join(textParts, ""), nil
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}
