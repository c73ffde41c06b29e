package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	strengthThreshold  = 70.0
	weaknessThreshold  = 60.0
	recentAttemptLimit = 10
	highlightCount     = 3

	defaultSuggestion = "Practice regularly and focus on understanding concepts."
)

var improvementSuggestions = map[string]map[string]string{
	"Quantitative Aptitude": {
		"low":    "Focus on basic arithmetic and number systems. Practice daily calculations.",
		"medium": "Work on advanced topics like probability and permutations.",
		"high":   "Fine-tune speed and accuracy with timed practice sessions.",
	},
	"Logical Reasoning": {
		"low":    "Start with basic pattern recognition and simple logical sequences.",
		"medium": "Practice syllogisms and analytical reasoning problems.",
		"high":   "Focus on complex reasoning puzzles and time management.",
	},
	"Verbal Ability": {
		"low":    "Build vocabulary and practice basic grammar rules.",
		"medium": "Work on reading comprehension and sentence correction.",
		"high":   "Practice advanced verbal reasoning and critical thinking.",
	},
	"Programming": {
		"low":    "Review basic programming concepts and syntax.",
		"medium": "Practice data structures and algorithm problems.",
		"high":   "Focus on optimization and complex problem-solving.",
	},
}

// AnalyticsService derives dashboard views from a user's attempts and
// per-subject progress metrics.
type AnalyticsService interface {
	ComputeProgress(ctx context.Context, userID uint) (*dto.UserProgress, error)
	WeakAreas(ctx context.Context, userID uint) ([]dto.WeakArea, error)
	Recommendations(ctx context.Context, userID uint) (*dto.Recommendations, error)
}

type analyticsService struct {
	attemptRepo repository.TestAttemptRepository
	metricsRepo repository.ProgressMetricsRepository
	now         func() time.Time
}

func NewAnalyticsService(attemptRepo repository.TestAttemptRepository, metricsRepo repository.ProgressMetricsRepository) AnalyticsService {
	return &analyticsService{
		attemptRepo: attemptRepo,
		metricsRepo: metricsRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *analyticsService) ComputeProgress(ctx context.Context, userID uint) (*dto.UserProgress, error) {
	attempts, err := s.attemptRepo.FindAllByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("userID", userID).Msg("ComputeProgress: failed to load attempts")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load attempts", err)
	}

	progress := &dto.UserProgress{
		SubjectPerformance: map[string]dto.SubjectPerformance{},
		RecentPerformance:  []dto.RecentPerformance{},
		Strengths:          []dto.SubjectScore{},
		Weaknesses:         []dto.SubjectScore{},
	}
	if len(attempts) == 0 {
		return progress, nil
	}

	metrics, err := s.metricsRepo.FindAllByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("userID", userID).Msg("ComputeProgress: failed to load progress metrics")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load progress metrics", err)
	}

	var score float64
	var questions int
	for i := range attempts {
		score += attempts[i].Score
		questions += attempts[i].TotalQuestions
		progress.TotalTimeSpent += attempts[i].TimeTaken
	}
	progress.TotalTests = len(attempts)
	if questions > 0 {
		progress.AverageScore = round2(score / float64(questions) * 100)
	}
	progress.ImprovementTrend = improvementTrend(attempts)
	progress.RecentPerformance = recentPerformance(attempts)

	for _, m := range metrics {
		progress.SubjectPerformance[m.SubjectArea] = dto.SubjectPerformance{
			AccuracyRate:  round2(m.AccuracyRate),
			TotalAttempts: m.TotalAttempts,
			LastUpdated:   m.LastUpdated,
		}
	}
	progress.Strengths, progress.Weaknesses = strengthsAndWeaknesses(metrics)

	now := s.now()
	progress.LastUpdated = &now
	return progress, nil
}

// improvementTrend compares the mean percentage of the later half of the
// attempts with the earlier half. Attempts arrive oldest first.
func improvementTrend(attempts []model.TestAttempt) float64 {
	if len(attempts) < 2 {
		return 0
	}
	mid := len(attempts) / 2
	return round2(meanPercentage(attempts[mid:]) - meanPercentage(attempts[:mid]))
}

func meanPercentage(attempts []model.TestAttempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	var sum float64
	for i := range attempts {
		sum += attempts[i].Percentage()
	}
	return sum / float64(len(attempts))
}

func recentPerformance(attempts []model.TestAttempt) []dto.RecentPerformance {
	start := max(len(attempts)-recentAttemptLimit, 0)
	out := make([]dto.RecentPerformance, 0, len(attempts)-start)
	for _, a := range attempts[start:] {
		company := "Unknown"
		if a.Test.ID != 0 {
			company = a.Test.Company
		}
		out = append(out, dto.RecentPerformance{
			Date:      a.StartedAt,
			Score:     round2(a.Percentage()),
			Company:   company,
			TimeTaken: a.TimeTaken,
		})
	}
	return out
}

// strengthsAndWeaknesses takes the top three subjects when the best one is at
// least 70 and the bottom three when the worst one is under 60. The gate looks
// only at the extreme subject, so a listed subject may sit on the other side
// of the threshold.
func strengthsAndWeaknesses(metrics []model.ProgressMetrics) ([]dto.SubjectScore, []dto.SubjectScore) {
	strengths, weaknesses := []dto.SubjectScore{}, []dto.SubjectScore{}
	if len(metrics) == 0 {
		return strengths, weaknesses
	}

	ranked := make([]dto.SubjectScore, 0, len(metrics))
	for _, m := range metrics {
		ranked = append(ranked, dto.SubjectScore{Subject: m.SubjectArea, AccuracyRate: round2(m.AccuracyRate)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AccuracyRate != ranked[j].AccuracyRate {
			return ranked[i].AccuracyRate > ranked[j].AccuracyRate
		}
		return ranked[i].Subject < ranked[j].Subject
	})

	if ranked[0].AccuracyRate >= strengthThreshold {
		strengths = append(strengths, ranked[:min(highlightCount, len(ranked))]...)
	}
	if ranked[len(ranked)-1].AccuracyRate < weaknessThreshold {
		weaknesses = append(weaknesses, ranked[max(len(ranked)-highlightCount, 0):]...)
	}
	return strengths, weaknesses
}

func (s *analyticsService) WeakAreas(ctx context.Context, userID uint) ([]dto.WeakArea, error) {
	metrics, err := s.metricsRepo.FindAllByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("userID", userID).Msg("WeakAreas: failed to load progress metrics")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load progress metrics", err)
	}

	areas := []dto.WeakArea{}
	for _, m := range metrics {
		if m.AccuracyRate >= weaknessThreshold {
			continue
		}
		rate := round2(m.AccuracyRate)
		areas = append(areas, dto.WeakArea{
			Subject:               m.SubjectArea,
			AccuracyRate:          rate,
			AttemptsCount:         m.TotalAttempts,
			ImprovementSuggestion: improvementSuggestion(m.SubjectArea, rate),
		})
	}
	sort.SliceStable(areas, func(i, j int) bool { return areas[i].AccuracyRate < areas[j].AccuracyRate })
	return areas, nil
}

func improvementSuggestion(subject string, accuracy float64) string {
	tier := "high"
	switch {
	case accuracy < 40:
		tier = "low"
	case accuracy < 70:
		tier = "medium"
	}
	if s, ok := improvementSuggestions[subject][tier]; ok {
		return s
	}
	return defaultSuggestion
}

func (s *analyticsService) Recommendations(ctx context.Context, userID uint) (*dto.Recommendations, error) {
	progress, err := s.ComputeProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	weak, err := s.WeakAreas(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dto.Recommendations{
		PriorityAreas:       weak[:min(highlightCount, len(weak))],
		PracticeSuggestions: practiceSuggestions(progress),
		TimeAllocation:      timeAllocation(weak),
		NextSteps:           nextSteps(progress, weak),
	}, nil
}

func practiceSuggestions(p *dto.UserProgress) []string {
	var out []string
	if p.TotalTests < 5 {
		out = append(out, "Take more practice tests to establish baseline performance")
	}
	if p.AverageScore < 60 {
		out = append(out,
			"Focus on accuracy over speed initially",
			"Review fundamental concepts before attempting advanced questions")
	}
	if p.ImprovementTrend < 0 {
		out = append(out,
			"Analyze recent mistakes to identify recurring error patterns",
			"Consider changing study approach or seeking additional help")
	}
	return append(out,
		"Practice daily for consistent improvement",
		"Time yourself during practice sessions",
		"Review explanations for both correct and incorrect answers")
}

// timeAllocation is in minutes per day, weakest subject first.
func timeAllocation(weak []dto.WeakArea) map[string]int {
	if len(weak) == 0 {
		return map[string]int{"balanced_practice": 30}
	}
	out := make(map[string]int)
	for i, area := range weak[:min(4, len(weak))] {
		switch i {
		case 0:
			out[area.Subject] = 45
		case 1:
			out[area.Subject] = 30
		default:
			out[area.Subject] = 20
		}
	}
	out["revision"] = 15
	return out
}

func nextSteps(p *dto.UserProgress, weak []dto.WeakArea) []string {
	var out []string
	switch {
	case p.TotalTests == 0:
		out = append(out, "Take your first practice test to establish baseline")
	case p.TotalTests < leaderboardMinAttempts:
		out = append(out, "Complete at least 3 practice tests for better analysis")
	}
	if len(weak) > 0 {
		out = append(out,
			fmt.Sprintf("Start focused practice on %s", weak[0].Subject),
			"Review fundamental concepts in your weakest areas")
	}
	if p.ImprovementTrend > 0 {
		out = append(out, "Continue current study approach - you're improving!")
	}
	return append(out,
		"Set daily practice goals and track progress",
		"Schedule regular mock tests to monitor improvement")
}
