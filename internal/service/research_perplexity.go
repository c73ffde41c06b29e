package service

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const perplexitySystemPrompt = "You are a placement exam research assistant. Answer with accurate, recent, source-backed information."

// perplexityResearchBackend uses Perplexity's OpenAI-compatible chat API.
// Its sonar models search the web on every request.
type perplexityResearchBackend struct {
	api   *openai.Client
	model string
}

func newPerplexityResearchBackend(apiKey, baseURL, model string) *perplexityResearchBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &perplexityResearchBackend{api: openai.NewClientWithConfig(cfg), model: model}
}

func (b *perplexityResearchBackend) name() string { return "perplexity" }

func (b *perplexityResearchBackend) groundedReport(ctx context.Context, prompt string) (string, []ResearchSource, error) {
	resp, err := b.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: perplexitySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", nil, fmt.Errorf("perplexity chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("perplexity returned no choices")
	}
	// Citations are not part of the OpenAI response shape, so none are surfaced.
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil, nil
}
