package anthropicLLM

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/rag/llm"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var logger = logger_i.NewLogger("llm_anthropic")

type llmClient struct {
	client    anthropic.Client
	modelName string
	maxTokens int64
}

// New builds a Claude provider. httpClient may be nil to use the SDK default.
func New(apiKey, modelName string, maxTokens int, httpClient *http.Client, opts ...option.RequestOption) llm.Provider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(httpClient))
	}
	reqOpts = append(reqOpts, opts...)
	logger.Info("Anthropic client created", "model", modelName)
	return &llmClient{
		client:    anthropic.NewClient(reqOpts...),
		modelName: modelName,
		maxTokens: int64(maxTokens),
	}
}

func (c *llmClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelName),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(config.ModelTemperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Error("Anthropic call failed", "error", err)
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic: empty completion")
	}
	log.Debug("Anthropic completion", "stopReason", msg.StopReason, "outputTokens", msg.Usage.OutputTokens)
	return sb.String(), nil
}
