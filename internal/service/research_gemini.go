package service

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiResearchBackend calls Gemini with the Google Search tool enabled so the
// answer carries grounding citations.
type geminiResearchBackend struct {
	client *genai.Client
	model  string
}

func newGeminiResearchBackend(ctx context.Context, apiKey, model string) (*geminiResearchBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiResearchBackend{client: client, model: model}, nil
}

func (b *geminiResearchBackend) name() string { return "gemini" }

func (b *geminiResearchBackend) groundedReport(ctx context.Context, prompt string) (string, []ResearchSource, error) {
	temperature := float32(0.2)
	result, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("gemini grounded generation: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", nil, fmt.Errorf("gemini returned no candidates")
	}

	return strings.TrimSpace(result.Text()), groundingSources(result.Candidates[0]), nil
}

func groundingSources(c *genai.Candidate) []ResearchSource {
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}
	var sources []ResearchSource
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, ResearchSource{Title: chunk.Web.Title, URL: chunk.Web.URI})
	}
	return sources
}
