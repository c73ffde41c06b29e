package service

import (
	"context"
	"testing"
	"time"

	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/lshigami/PlacementPrep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAnalytics(db *gorm.DB) *analyticsService {
	return NewAnalyticsService(
		repository.NewTestAttemptRepository(db),
		repository.NewProgressMetricsRepository(db),
	).(*analyticsService)
}

func seedMetric(t *testing.T, db *gorm.DB, userID uint, subject string, rate float64, attempts int) {
	t.Helper()
	m := &model.ProgressMetrics{
		UserID:        userID,
		SubjectArea:   subject,
		AccuracyRate:  rate,
		TotalAttempts: attempts,
		LastUpdated:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Omit("User").Create(m).Error)
}

func TestComputeProgress_NoAttempts(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "New Student", 1, "CSE")
	seedMetric(t, db, user.ID, "Verbal Ability", 90, 1)

	p, err := newAnalytics(db).ComputeProgress(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Zero(t, p.TotalTests)
	assert.Zero(t, p.AverageScore)
	assert.NotNil(t, p.SubjectPerformance)
	assert.Empty(t, p.SubjectPerformance)
	assert.NotNil(t, p.RecentPerformance)
	assert.Empty(t, p.Strengths)
	assert.NotNil(t, p.Weaknesses)
	assert.Nil(t, p.LastUpdated)
}

func TestComputeProgress(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "Meera Iyer", 3, "CSE")
	test := testutil.CreateTest(t, db, "TCS NQT", 2025, testutil.SectionSpec{Name: "Quant", Correct: []string{"A"}})

	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	// percentages 40, 50, 80, 90 oldest first
	for i, score := range []float64{4, 5, 8, 9} {
		testutil.CreateAttempt(t, db, user.ID, test.ID, score, 10, 600, base.Add(time.Duration(i)*24*time.Hour))
	}
	seedMetric(t, db, user.ID, "Quantitative Aptitude", 85.556, 4)
	seedMetric(t, db, user.ID, "Verbal Ability", 72, 4)
	seedMetric(t, db, user.ID, "Logical Reasoning", 65, 4)
	seedMetric(t, db, user.ID, "Programming", 30, 4)

	svc := newAnalytics(db)
	fixed := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	p, err := svc.ComputeProgress(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, p.TotalTests)
	assert.Equal(t, 65.0, p.AverageScore)
	assert.Equal(t, 2400, p.TotalTimeSpent)
	assert.Equal(t, 40.0, p.ImprovementTrend)
	require.NotNil(t, p.LastUpdated)
	assert.Equal(t, fixed, *p.LastUpdated)

	require.Len(t, p.RecentPerformance, 4)
	assert.Equal(t, 40.0, p.RecentPerformance[0].Score)
	assert.Equal(t, "TCS NQT", p.RecentPerformance[0].Company)
	assert.Equal(t, 90.0, p.RecentPerformance[3].Score)

	assert.Equal(t, 85.56, p.SubjectPerformance["Quantitative Aptitude"].AccuracyRate)
	assert.Equal(t, 4, p.SubjectPerformance["Programming"].TotalAttempts)

	assert.Equal(t, []string{"Quantitative Aptitude", "Verbal Ability", "Logical Reasoning"}, subjects(p.Strengths))
	assert.Equal(t, []string{"Verbal Ability", "Logical Reasoning", "Programming"}, subjects(p.Weaknesses))
}

func TestComputeProgress_RecentIsCapped(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "Karan", 2, "IT")
	test := testutil.CreateTest(t, db, "Wipro", 2025, testutil.SectionSpec{Name: "Quant", Correct: []string{"A"}})

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		testutil.CreateAttempt(t, db, user.ID, test.ID, float64(i%5), 4, 60, base.Add(time.Duration(i)*time.Hour))
	}

	p, err := newAnalytics(db).ComputeProgress(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, p.RecentPerformance, recentAttemptLimit)
	assert.Equal(t, base.Add(2*time.Hour), p.RecentPerformance[0].Date.UTC())
}

func TestImprovementTrend(t *testing.T) {
	attempt := func(score float64) model.TestAttempt { return model.TestAttempt{Score: score, TotalQuestions: 10} }

	assert.Zero(t, improvementTrend(nil))
	assert.Zero(t, improvementTrend([]model.TestAttempt{attempt(5)}))
	assert.Equal(t, 30.0, improvementTrend([]model.TestAttempt{attempt(5), attempt(8)}))
	// odd counts put the middle attempt in the later half
	assert.Equal(t, -25.0, improvementTrend([]model.TestAttempt{attempt(9), attempt(7), attempt(6)}))
}

func TestStrengthsAndWeaknesses_Gates(t *testing.T) {
	metric := func(subject string, rate float64) model.ProgressMetrics {
		return model.ProgressMetrics{SubjectArea: subject, AccuracyRate: rate}
	}

	strengths, weaknesses := strengthsAndWeaknesses([]model.ProgressMetrics{metric("A", 65), metric("B", 62)})
	assert.Empty(t, strengths)
	assert.Empty(t, weaknesses)

	strengths, weaknesses = strengthsAndWeaknesses([]model.ProgressMetrics{metric("B", 70), metric("A", 70)})
	assert.Equal(t, []string{"A", "B"}, subjects(strengths))
	assert.Empty(t, weaknesses)

	strengths, weaknesses = strengthsAndWeaknesses([]model.ProgressMetrics{metric("Only", 10)})
	assert.Empty(t, strengths)
	assert.Equal(t, []string{"Only"}, subjects(weaknesses))
}

func TestWeakAreas(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "Dev Patel", 4, "EEE")
	seedMetric(t, db, user.ID, "Verbal Ability", 55, 2)
	seedMetric(t, db, user.ID, "Quantitative Aptitude", 35, 3)
	seedMetric(t, db, user.ID, "Logical Reasoning", 60, 1)
	seedMetric(t, db, user.ID, "Data Interpretation", 20, 1)

	areas, err := newAnalytics(db).WeakAreas(context.Background(), user.ID)
	require.NoError(t, err)

	require.Len(t, areas, 3)
	assert.Equal(t, "Data Interpretation", areas[0].Subject)
	assert.Equal(t, defaultSuggestion, areas[0].ImprovementSuggestion)
	assert.Equal(t, "Quantitative Aptitude", areas[1].Subject)
	assert.Equal(t, 3, areas[1].AttemptsCount)
	assert.Equal(t, improvementSuggestions["Quantitative Aptitude"]["low"], areas[1].ImprovementSuggestion)
	assert.Equal(t, "Verbal Ability", areas[2].Subject)
	assert.Equal(t, improvementSuggestions["Verbal Ability"]["medium"], areas[2].ImprovementSuggestion)

	other := testutil.CreateUser(t, db, "Nobody", 1, "CSE")
	none, err := newAnalytics(db).WeakAreas(context.Background(), other.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestImprovementSuggestionTiers(t *testing.T) {
	assert.Equal(t, improvementSuggestions["Programming"]["low"], improvementSuggestion("Programming", 39.99))
	assert.Equal(t, improvementSuggestions["Programming"]["medium"], improvementSuggestion("Programming", 40))
	assert.Equal(t, improvementSuggestions["Programming"]["high"], improvementSuggestion("Programming", 70))
	assert.Equal(t, defaultSuggestion, improvementSuggestion("Puzzles", 10))
}

func TestRecommendations(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "Sana Khan", 3, "CSE")
	test := testutil.CreateTest(t, db, "Infosys", 2025, testutil.SectionSpec{Name: "Quant", Correct: []string{"A"}})

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	testutil.CreateAttempt(t, db, user.ID, test.ID, 6, 10, 600, base)
	testutil.CreateAttempt(t, db, user.ID, test.ID, 4, 10, 600, base.Add(time.Hour))
	for i, subject := range []string{"Programming", "Verbal Ability", "Logical Reasoning", "Quantitative Aptitude", "Puzzles"} {
		seedMetric(t, db, user.ID, subject, float64(10+i*10), 1)
	}

	rec, err := newAnalytics(db).Recommendations(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Len(t, rec.PriorityAreas, 3)
	assert.Equal(t, "Programming", rec.PriorityAreas[0].Subject)

	assert.Equal(t, map[string]int{
		"Programming":           45,
		"Verbal Ability":        30,
		"Logical Reasoning":     20,
		"Quantitative Aptitude": 20,
		"revision":              15,
	}, rec.TimeAllocation)

	assert.Contains(t, rec.PracticeSuggestions, "Take more practice tests to establish baseline performance")
	assert.Contains(t, rec.PracticeSuggestions, "Focus on accuracy over speed initially")
	assert.Contains(t, rec.PracticeSuggestions, "Analyze recent mistakes to identify recurring error patterns")

	assert.Equal(t, "Complete at least 3 practice tests for better analysis", rec.NextSteps[0])
	assert.Contains(t, rec.NextSteps, "Start focused practice on Programming")
	assert.NotContains(t, rec.NextSteps, "Continue current study approach - you're improving!")
}

func TestRecommendations_NewUser(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "Fresh", 1, "CSE")

	rec, err := newAnalytics(db).Recommendations(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Empty(t, rec.PriorityAreas)
	assert.Equal(t, map[string]int{"balanced_practice": 30}, rec.TimeAllocation)
	assert.Equal(t, "Take your first practice test to establish baseline", rec.NextSteps[0])
	assert.Equal(t, "Practice daily for consistent improvement", rec.PracticeSuggestions[len(rec.PracticeSuggestions)-3])
}

func subjects(scores []dto.SubjectScore) []string {
	out := make([]string, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Subject)
	}
	return out
}
