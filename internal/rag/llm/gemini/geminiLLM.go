package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/rag/llm"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client    *genai.Client
	modelName string
	maxTokens int32
}

var logger *logger_i.Logger
var geminiClient *llmClient
var once sync.Once

// GetGeminiClient returns nil when the client could not be created.
func GetGeminiClient(ctx context.Context, modelName string, apikey string, maxTokens int) llm.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		newGeminiClient(ctx, modelName, apikey, maxTokens)
	})

	if geminiClient == nil {
		return nil
	}
	return &llmClient{client: geminiClient.client, modelName: geminiClient.modelName, maxTokens: geminiClient.maxTokens}
}

func newGeminiClient(ctx context.Context, modelName string, apikey string, maxTokens int) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Gemini client", "error", err)
		return
	}
	geminiClient = &llmClient{client: c, modelName: modelName, maxTokens: int32(maxTokens)}
	logger.Info("Gemini client created", "model", modelName)
}

func (c *llmClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		Temperature:      genai.Ptr(float32(config.ModelTemperature)),
		MaxOutputTokens:  c.maxTokens,
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(userPrompt), contentConfig)
	if err != nil {
		log.Error("Gemini call failed", "error", err)
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("gemini: empty completion")
	}
	return text, nil
}
