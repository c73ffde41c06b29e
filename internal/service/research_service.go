package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lshigami/PlacementPrep/config"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/rs/zerolog/log"
)

type ResearchSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type ResearchResult struct {
	Content  string
	Sources  []ResearchSource
	Elapsed  time.Duration
	Provider string
}

// ResearchService produces a prose report on a company's placement exam
// pattern, grounded on live web search.
type ResearchService interface {
	Research(ctx context.Context, company string) (*ResearchResult, error)
}

// researchBackend performs a single grounded generation call.
type researchBackend interface {
	name() string
	groundedReport(ctx context.Context, prompt string) (string, []ResearchSource, error)
}

var errResearchNotConfigured = errors.New("research provider is not configured")

type researchService struct {
	backend researchBackend
	policy  retryPolicy
	timeout time.Duration
}

// NewResearchService picks the backend from RESEARCH_PROVIDER. A missing API
// key leaves the service non-functional rather than failing startup.
func NewResearchService(cfg *config.Config) (ResearchService, error) {
	var (
		backend researchBackend
		err     error
	)
	switch strings.ToLower(cfg.Research.Provider) {
	case "perplexity":
		if cfg.Perplexity.APIKey == "" {
			log.Warn().Msg("PERPLEXITY_API_KEY is not set. ResearchService will be non-functional.")
			break
		}
		backend = newPerplexityResearchBackend(cfg.Perplexity.APIKey, cfg.Perplexity.BaseURL, cfg.Perplexity.Model)
	case "", "gemini":
		if cfg.Gemini.APIKey == "" {
			log.Warn().Msg("GEMINI_API_KEY is not set. ResearchService will be non-functional.")
			break
		}
		backend, err = newGeminiResearchBackend(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.ResearchModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize research client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown research provider %q", cfg.Research.Provider)
	}
	return newResearchService(backend, newRetryPolicy(cfg.Research.MaxRetries, cfg.Research.RetryDelay), cfg.Research.Timeout), nil
}

func newResearchService(backend researchBackend, policy retryPolicy, timeout time.Duration) *researchService {
	return &researchService{backend: backend, policy: policy, timeout: timeout}
}

func (s *researchService) Research(ctx context.Context, company string) (*ResearchResult, error) {
	if s.backend == nil {
		return nil, apperr.Wrap(apperr.KindExternalService, apperr.CodeServiceUnavailable,
			"research service unavailable", errResearchNotConfigured)
	}

	start := time.Now()
	prompt := buildResearchPrompt(company)

	type report struct {
		content string
		sources []ResearchSource
	}
	call := func(ctx context.Context) (report, error) {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		content, sources, err := s.backend.groundedReport(callCtx, prompt)
		if err != nil {
			return report{}, err
		}
		return report{content: content, sources: sources}, nil
	}

	out, attempts, err := withRetry(ctx, s.policy, "research", call, retryNetwork)
	if err != nil {
		log.Error().Err(err).
			Str("company", company).
			Str("provider", s.backend.name()).
			Int("attempts", attempts).
			Msg("Research failed")
		return nil, apperr.Wrap(apperr.KindExternalService, apperr.CodeServiceUnavailable,
			fmt.Sprintf("research service unavailable after %d attempt(s)", attempts), err)
	}
	if strings.TrimSpace(out.content) == "" {
		return nil, apperr.Wrap(apperr.KindExternalService, apperr.CodeServiceUnavailable,
			"research service returned no content", errors.New("empty research report"))
	}

	elapsed := time.Since(start)
	log.Info().
		Str("company", company).
		Str("provider", s.backend.name()).
		Int("content_length", len(out.content)).
		Int("sources", len(out.sources)).
		Dur("elapsed", elapsed).
		Msg("Research completed")

	return &ResearchResult{
		Content:  out.content,
		Sources:  out.sources,
		Elapsed:  elapsed,
		Provider: s.backend.name(),
	}, nil
}

func buildResearchPrompt(company string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the most recent campus placement / recruitment aptitude exam conducted by %s.\n\n", company)
	b.WriteString("Use current web sources and report:\n")
	b.WriteString("1. Exam structure: rounds, sections, number of questions per section and time limits.\n")
	b.WriteString("2. Section breakdown: Quantitative Aptitude, Logical Reasoning, Verbal Ability, Programming / Technical, and any company-specific sections.\n")
	b.WriteString("3. Topic weighting inside each section, with the topics that appear most often.\n")
	b.WriteString("4. Difficulty level and any negative marking or cut-off rules.\n")
	b.WriteString("5. Recent changes to the pattern compared to previous years.\n")
	b.WriteString("6. Preparation tips and commonly reported question styles.\n\n")
	b.WriteString("Write a detailed, factual report in plain prose. Prefer official or recent candidate-reported sources and say when information is uncertain.")
	return b.String()
}
