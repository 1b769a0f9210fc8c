package llm

import "context"

// Provider sends one system and user prompt pair and returns the raw completion text.
type Provider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
