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

type SynthesisResult struct {
	Sections       []SynthesizedSection
	TotalQuestions int
	Elapsed        time.Duration
}

// QuestionSynthesisService turns research text into validated MCQ sections.
type QuestionSynthesisService interface {
	Synthesize(ctx context.Context, research, company string, count int) (*SynthesisResult, error)
	SynthesizeChunked(ctx context.Context, research, company string, count, chunkSize int) (*SynthesisResult, error)
}

var errSynthesisNotConfigured = errors.New("question synthesis is not configured")

type questionSynthesisService struct {
	generator jsonGenerator
	policy    retryPolicy
	timeout   time.Duration
}

func NewQuestionSynthesisService(cfg *config.Config) (QuestionSynthesisService, error) {
	var generator jsonGenerator
	if cfg.Gemini.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. QuestionSynthesisService will be non-functional.")
	} else {
		g, err := newGeminiLLMService(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.SynthesisModel)
		if err != nil {
			return nil, err
		}
		generator = g
	}
	return newQuestionSynthesisService(generator, newRetryPolicy(cfg.Synthesis.MaxRetries, cfg.Synthesis.RetryDelay), cfg.Synthesis.Timeout), nil
}

func newQuestionSynthesisService(generator jsonGenerator, policy retryPolicy, timeout time.Duration) *questionSynthesisService {
	return &questionSynthesisService{generator: generator, policy: policy, timeout: timeout}
}

func (s *questionSynthesisService) Synthesize(ctx context.Context, research, company string, count int) (*SynthesisResult, error) {
	if s.generator == nil {
		return nil, apperr.Wrap(apperr.KindExternalService, apperr.CodeServiceUnavailable,
			"question synthesis unavailable", errSynthesisNotConfigured)
	}

	start := time.Now()
	prompt := buildSynthesisPrompt(research, company, count)

	call := func(ctx context.Context) ([]SynthesizedSection, error) {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		raw, err := s.generator.generateJSON(callCtx, prompt)
		if err != nil {
			return nil, err
		}
		sections, err := parseSynthesis(raw)
		if err != nil {
			log.Warn().Err(err).Str("company", company).Int("raw_length", len(raw)).Msg("Synthesis response rejected")
			return nil, err
		}
		return sections, nil
	}

	sections, attempts, err := withRetry(ctx, s.policy, "synthesis", call, retryAlways)
	if err != nil {
		code := apperr.CodeGenerationFailed
		if apperr.Is(err, apperr.KindStructuralValidation) {
			code = apperr.CodeMalformedOutput
		}
		log.Error().Err(err).Str("company", company).Int("attempts", attempts).Str("code", code).Msg("Question synthesis failed")
		return nil, apperr.Wrap(apperr.KindGenerationFailed, code,
			fmt.Sprintf("question synthesis failed after %d attempt(s)", attempts), err)
	}

	renumberQuestions(sections)
	total := countQuestions(sections)
	stats := computeQuestionStatistics(sections)
	log.Info().
		Str("company", company).
		Int("requested", count).
		Int("generated", total).
		Interface("difficulty", stats.Difficulty).
		Interface("sections", stats.Sections).
		Int("topics", len(stats.Topics)).
		Msg("Questions synthesized")

	return &SynthesisResult{Sections: sections, TotalQuestions: total, Elapsed: time.Since(start)}, nil
}

// SynthesizeChunked issues sequential requests of at most chunkSize questions
// and merges them by section name. A failed chunk fails the whole call.
func (s *questionSynthesisService) SynthesizeChunked(ctx context.Context, research, company string, count, chunkSize int) (*SynthesisResult, error) {
	if chunkSize <= 0 || count <= chunkSize {
		return s.Synthesize(ctx, research, company, count)
	}

	start := time.Now()
	var chunks [][]SynthesizedSection
	for remaining, idx := count, 1; remaining > 0; idx++ {
		n := min(chunkSize, remaining)
		log.Debug().Str("company", company).Int("chunk", idx).Int("questions", n).Msg("Synthesizing chunk")
		res, err := s.Synthesize(ctx, research, company, n)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", idx, err)
		}
		chunks = append(chunks, res.Sections)
		remaining -= n
	}

	merged := mergeSections(chunks...)
	return &SynthesisResult{Sections: merged, TotalQuestions: countQuestions(merged), Elapsed: time.Since(start)}, nil
}

func buildSynthesisPrompt(research, company string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert placement exam setter. Using the research below about the %s placement exam, ", company)
	fmt.Fprintf(&b, "write exactly %d original multiple-choice questions that mirror its pattern.\n\n", count)
	b.WriteString("RESEARCH:\n---\n")
	b.WriteString(research)
	b.WriteString("\n---\n\n")
	b.WriteString("Distribution:\n")
	b.WriteString("- Difficulty: about 30% easy, 50% medium, 20% hard.\n")
	b.WriteString("- Spread topics across Quantitative Aptitude, Logical Reasoning, Verbal Ability and Technical/Programming as the pattern requires.\n\n")
	b.WriteString("Return ONLY a JSON object with exactly this shape:\n")
	fmt.Fprintf(&b, `{
  "company": "%s",
  "year": 2025,
  "total_questions": %d,
  "sections": [
    {
      "section_name": "Quantitative Aptitude",
      "time_limit_minutes": 20,
      "questions": [
        {
          "id": 1,
          "question_text": "...",
          "options": ["A) ...", "B) ...", "C) ...", "D) ..."],
          "correct_answer": "A",
          "explanation": "...",
          "difficulty": "easy",
          "topic": "Percentages",
          "time_estimate_seconds": 60
        }
      ]
    }
  ]
}`, company, count)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Every question has exactly 4 options prefixed A), B), C), D).\n")
	b.WriteString("- correct_answer is exactly one of \"A\", \"B\", \"C\", \"D\".\n")
	b.WriteString("- difficulty is exactly one of \"easy\", \"medium\", \"hard\".\n")
	b.WriteString("- explanation is required and shows the working.\n")
	b.WriteString("- No markdown, no commentary outside the JSON.\n")
	return b.String()
}
