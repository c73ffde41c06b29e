package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/cache"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubmitTestInput struct {
	Answers   map[string]string
	TimeTaken int
	StartedAt *time.Time
}

// TestSubmissionService scores submissions and keeps per-subject progress.
type TestSubmissionService interface {
	SubmitTest(ctx context.Context, testID, userID uint, in SubmitTestInput) (*dto.ScoringResult, error)
	GetResults(ctx context.Context, testID, attemptID, userID uint) (*dto.ScoringResult, error)
	GetUserAttemptsForTest(ctx context.Context, testID, userID uint) ([]dto.TestAttemptSummaryDTO, error)
}

type testSubmissionService struct {
	db          *gorm.DB
	testRepo    repository.TestRepository
	attemptRepo repository.TestAttemptRepository
	metricsRepo repository.ProgressMetricsRepository
	rankings    cache.RankingCache
	now         func() time.Time
}

func NewTestSubmissionService(
	db *gorm.DB,
	testRepo repository.TestRepository,
	attemptRepo repository.TestAttemptRepository,
	metricsRepo repository.ProgressMetricsRepository,
	rankings cache.RankingCache,
) TestSubmissionService {
	return &testSubmissionService{
		db:          db,
		testRepo:    testRepo,
		attemptRepo: attemptRepo,
		metricsRepo: metricsRepo,
		rankings:    rankings,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *testSubmissionService) SubmitTest(ctx context.Context, testID, userID uint, in SubmitTestInput) (*dto.ScoringResult, error) {
	if len(in.Answers) == 0 {
		return nil, apperr.Validation(apperr.CodeMissingAnswers, "answers", "answers are required")
	}
	if in.TimeTaken < 0 {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "time_taken", "time_taken cannot be negative")
	}

	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	sheet, err := scoreAnswers(test.Questions, in.Answers)
	if err != nil {
		return nil, err
	}

	completedAt := s.now()
	startedAt := completedAt
	if in.StartedAt != nil {
		startedAt = in.StartedAt.UTC()
	}

	attempt := &model.TestAttempt{
		UserID:         userID,
		TestID:         test.ID,
		Score:          float64(sheet.correct),
		TotalQuestions: len(test.Questions),
		TimeTaken:      in.TimeTaken,
		Answers:        datatypes.NewJSONType(in.Answers),
		StartedAt:      startedAt,
		CompletedAt:    &completedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.attemptRepo.WithTx(tx).Create(ctx, attempt); err != nil {
			return fmt.Errorf("create test attempt: %w", err)
		}
		metricsRepo := s.metricsRepo.WithTx(tx)
		for _, section := range sheet.sectionOrder {
			tally := sheet.sections[section]
			metrics, err := metricsRepo.LockForUpdate(ctx, userID, section)
			if err != nil {
				return fmt.Errorf("lock progress metrics for %q: %w", section, err)
			}
			applySectionResult(metrics, tally.correct, tally.total, completedAt)
			if err := metricsRepo.Save(ctx, metrics); err != nil {
				return fmt.Errorf("save progress metrics for %q: %w", section, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("SubmitTest: transaction rolled back")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to save submission", err)
	}

	if err := s.rankings.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("SubmitTest: failed to invalidate leaderboard cache")
	}

	log.Info().
		Uint("attemptID", attempt.ID).
		Uint("testID", test.ID).
		Uint("userID", userID).
		Int("correct", sheet.correct).
		Int("total", attempt.TotalQuestions).
		Msg("Test attempt scored")

	return buildScoringResult(attempt, sheet), nil
}

// GetResults rebuilds the result view of a stored attempt. Attempts owned by
// someone else are reported as not found.
func (s *testSubmissionService) GetResults(ctx context.Context, testID, attemptID, userID uint) (*dto.ScoringResult, error) {
	attempt, err := s.attemptRepo.FindOwned(ctx, attemptID, testID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(apperr.CodeAttemptNotFound, "test attempt not found")
		}
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load test attempt", err)
	}

	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	sheet, err := scoreAnswers(test.Questions, attempt.Answers.Data())
	if err != nil {
		return nil, err
	}
	return buildScoringResult(attempt, sheet), nil
}

func (s *testSubmissionService) GetUserAttemptsForTest(ctx context.Context, testID, userID uint) ([]dto.TestAttemptSummaryDTO, error) {
	attempts, err := s.attemptRepo.FindAllByTestAndUser(ctx, testID, userID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("GetUserAttemptsForTest: query failed")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load attempts", err)
	}
	out := make([]dto.TestAttemptSummaryDTO, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		out = append(out, dto.TestAttemptSummaryDTO{
			ID:             a.ID,
			TestID:         a.TestID,
			Score:          a.Score,
			TotalQuestions: a.TotalQuestions,
			Percentage:     round1(a.Percentage()),
			TimeTaken:      a.TimeTaken,
			StartedAt:      a.StartedAt,
			CompletedAt:    a.CompletedAt,
		})
	}
	return out, nil
}

func (s *testSubmissionService) loadTest(ctx context.Context, testID uint) (*model.Test, error) {
	test, err := s.testRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(apperr.CodeTestNotFound, "test not found")
		}
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load test", err)
	}
	if len(test.Questions) == 0 {
		return nil, apperr.Validation(apperr.CodeNoQuestions, "test_id", "test has no questions")
	}
	return test, nil
}

type sectionTally struct {
	correct int
	total   int
}

type scoreSheet struct {
	correct      int
	sectionOrder []string
	sections     map[string]*sectionTally
	results      []dto.QuestionResult
}

func normalizeAnswer(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// scoreAnswers compares every question against the submitted map. An empty
// submission never matches, even when the stored label is empty too.
func scoreAnswers(questions []model.Question, answers map[string]string) (*scoreSheet, error) {
	sheet := &scoreSheet{
		sections: make(map[string]*sectionTally),
		results:  make([]dto.QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		raw := answers[strconv.FormatUint(uint64(q.ID), 10)]
		if len(q.Options) != optionsPerQuestion {
			log.Error().
				Uint("questionID", q.ID).
				Str("correctAnswer", q.CorrectAnswer).
				Str("submittedAnswer", raw).
				Int("options", len(q.Options)).
				Msg("Malformed stored question, aborting scoring")
			return nil, apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, "malformed stored question",
				fmt.Errorf("question %d has %d options", q.ID, len(q.Options)))
		}

		submitted := normalizeAnswer(raw)
		correct := normalizeAnswer(q.CorrectAnswer)
		isCorrect := submitted != "" && submitted == correct

		tally, ok := sheet.sections[q.Section]
		if !ok {
			tally = &sectionTally{}
			sheet.sections[q.Section] = tally
			sheet.sectionOrder = append(sheet.sectionOrder, q.Section)
		}
		tally.total++
		if isCorrect {
			tally.correct++
			sheet.correct++
		}

		sheet.results = append(sheet.results, dto.QuestionResult{
			QuestionID:    q.ID,
			Section:       q.Section,
			QuestionText:  q.QuestionText,
			Options:       []string(q.Options),
			UserAnswer:    raw,
			CorrectAnswer: correct,
			IsCorrect:     isCorrect,
			Explanation:   q.Explanation,
		})
	}
	return sheet, nil
}

// applySectionResult folds one section's outcome into the running accuracy.
// The stored rate and attempt count are turned back into a correct-answer
// total, sized by the new section's question count.
func applySectionResult(m *model.ProgressMetrics, correct, total int, at time.Time) {
	if total <= 0 {
		return
	}
	if m.TotalAttempts <= 0 {
		m.AccuracyRate = float64(correct) / float64(total) * 100
		m.TotalAttempts = 1
	} else {
		currentCorrect := m.AccuracyRate / 100 * float64(m.TotalAttempts) * float64(total)
		m.AccuracyRate = (currentCorrect + float64(correct)) / (float64(m.TotalAttempts+1) * float64(total)) * 100
		m.TotalAttempts++
	}
	m.LastUpdated = at
}

func buildScoringResult(attempt *model.TestAttempt, sheet *scoreSheet) *dto.ScoringResult {
	sectionScores := make(map[string]dto.SectionScore, len(sheet.sections))
	for name, t := range sheet.sections {
		pct := 0.0
		if t.total > 0 {
			pct = float64(t.correct) / float64(t.total) * 100
		}
		sectionScores[name] = dto.SectionScore{Score: t.correct, Total: t.total, Percentage: round1(pct)}
	}
	return &dto.ScoringResult{
		AttemptID:      attempt.ID,
		TestID:         attempt.TestID,
		Score:          attempt.Score,
		TotalQuestions: attempt.TotalQuestions,
		Percentage:     round1(attempt.Percentage()),
		TimeTaken:      attempt.TimeTaken,
		StartedAt:      attempt.StartedAt,
		CompletedAt:    attempt.CompletedAt,
		Results:        sheet.results,
		SectionScores:  sectionScores,
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
