package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/lshigami/PlacementPrep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type submissionFixture struct {
	db       *gorm.DB
	svc      *testSubmissionService
	rankings *countingCache
	user     *model.User
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &submissionFixture{db: db, rankings: newCountingCache()}
	f.svc = NewTestSubmissionService(
		db,
		repository.NewTestRepository(db),
		repository.NewTestAttemptRepository(db),
		repository.NewProgressMetricsRepository(db),
		f.rankings,
	).(*testSubmissionService)
	f.user = testutil.CreateUser(t, db, "Rahul Verma", 4, "ECE")
	return f
}

func qid(q model.Question) string {
	return strconv.FormatUint(uint64(q.ID), 10)
}

func TestSubmitTest_OneCorrectOfTen(t *testing.T) {
	f := newSubmissionFixture(t)
	test := testutil.CreateTest(t, f.db, "TCS NQT", 2025,
		testutil.SectionSpec{Name: "Quantitative Aptitude", Correct: []string{"A", "B", "C", "D", "A"}},
		testutil.SectionSpec{Name: "Verbal Ability", Correct: []string{"B", "C", "D", "A", "B"}},
	)

	answers := map[string]string{qid(test.Questions[0]): "A"}
	for _, q := range test.Questions[1:] {
		answers[qid(q)] = "wrong"
	}

	res, err := f.svc.SubmitTest(context.Background(), test.ID, f.user.ID, SubmitTestInput{Answers: answers, TimeTaken: 600})
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 10, res.TotalQuestions)
	assert.Equal(t, 10.0, res.Percentage)
	assert.Equal(t, 600, res.TimeTaken)
	require.Len(t, res.Results, 10)
	assert.True(t, res.Results[0].IsCorrect)
	assert.Equal(t, "wrong", res.Results[1].UserAnswer)
	assert.Equal(t, "Quantitative Aptitude", res.Results[0].Section)
	assert.Equal(t, "because", res.Results[0].Explanation)

	quant := res.SectionScores["Quantitative Aptitude"]
	assert.Equal(t, 1, quant.Score)
	assert.Equal(t, 5, quant.Total)
	assert.Equal(t, 20.0, quant.Percentage)
	assert.Equal(t, 0.0, res.SectionScores["Verbal Ability"].Percentage)

	var attempts int64
	require.NoError(t, f.db.Model(&model.TestAttempt{}).Count(&attempts).Error)
	assert.Equal(t, int64(1), attempts)
	assert.Equal(t, 1, f.rankings.invalidated())
}

func TestSubmitTest_NormalizesAnswers(t *testing.T) {
	f := newSubmissionFixture(t)
	test := testutil.CreateTest(t, f.db, "Infosys", 2025,
		testutil.SectionSpec{Name: "Logical Reasoning", Correct: []string{"A", "B", "C"}},
	)

	answers := map[string]string{
		qid(test.Questions[0]): " a ",
		qid(test.Questions[1]): "b",
		qid(test.Questions[2]): "",
	}
	res, err := f.svc.SubmitTest(context.Background(), test.ID, f.user.ID, SubmitTestInput{Answers: answers})
	require.NoError(t, err)

	assert.Equal(t, 2.0, res.Score)
	// the submitted value is echoed as sent, only the comparison is normalized
	assert.Equal(t, " a ", res.Results[0].UserAnswer)
	assert.True(t, res.Results[0].IsCorrect)
	assert.Equal(t, "A", res.Results[0].CorrectAnswer)
	assert.False(t, res.Results[2].IsCorrect)
	assert.Equal(t, 66.7, res.Percentage)
}

func TestSubmitTest_UpdatesProgressMetrics(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	test := testutil.CreateTest(t, f.db, "Wipro", 2025,
		testutil.SectionSpec{Name: "Quantitative Aptitude", Correct: []string{"A", "A", "A", "A", "A", "A", "A", "A", "A", "A"}},
	)

	submit := func(correct int) {
		answers := make(map[string]string)
		for i, q := range test.Questions {
			if i < correct {
				answers[qid(q)] = "A"
			} else {
				answers[qid(q)] = "B"
			}
		}
		_, err := f.svc.SubmitTest(ctx, test.ID, f.user.ID, SubmitTestInput{Answers: answers})
		require.NoError(t, err)
	}

	submit(8)
	metrics, err := repository.NewProgressMetricsRepository(f.db).FindByUserAndSubject(ctx, f.user.ID, "Quantitative Aptitude")
	require.NoError(t, err)
	assert.InDelta(t, 80.0, metrics.AccuracyRate, 1e-9)
	assert.Equal(t, 1, metrics.TotalAttempts)

	submit(6)
	metrics, err = repository.NewProgressMetricsRepository(f.db).FindByUserAndSubject(ctx, f.user.ID, "Quantitative Aptitude")
	require.NoError(t, err)
	assert.InDelta(t, 70.0, metrics.AccuracyRate, 1e-9)
	assert.Equal(t, 2, metrics.TotalAttempts)
}

func TestApplySectionResult(t *testing.T) {
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m := &model.ProgressMetrics{}

	applySectionResult(m, 3, 4, at)
	assert.InDelta(t, 75.0, m.AccuracyRate, 1e-9)
	assert.Equal(t, 1, m.TotalAttempts)
	assert.Equal(t, at, m.LastUpdated)

	applySectionResult(m, 1, 4, at)
	assert.InDelta(t, 50.0, m.AccuracyRate, 1e-9)
	assert.Equal(t, 2, m.TotalAttempts)

	// an empty section leaves the metric alone
	applySectionResult(m, 0, 0, at.Add(time.Hour))
	assert.Equal(t, 2, m.TotalAttempts)
	assert.Equal(t, at, m.LastUpdated)
}

func TestSubmitTest_Errors(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	empty := &model.Test{Company: "Empty Co", Year: 2025, TimeLimitMinutes: 60}
	require.NoError(t, f.db.Create(empty).Error)

	_, err := f.svc.SubmitTest(ctx, 9999, f.user.ID, SubmitTestInput{Answers: map[string]string{"1": "A"}})
	assertCode(t, err, apperr.KindNotFound, apperr.CodeTestNotFound)

	_, err = f.svc.SubmitTest(ctx, empty.ID, f.user.ID, SubmitTestInput{Answers: map[string]string{"1": "A"}})
	assertCode(t, err, apperr.KindValidation, apperr.CodeNoQuestions)

	_, err = f.svc.SubmitTest(ctx, empty.ID, f.user.ID, SubmitTestInput{})
	assertCode(t, err, apperr.KindValidation, apperr.CodeMissingAnswers)

	_, err = f.svc.SubmitTest(ctx, empty.ID, f.user.ID, SubmitTestInput{Answers: map[string]string{"1": "A"}, TimeTaken: -5})
	assertCode(t, err, apperr.KindValidation, apperr.CodeInvalidRequest)

	assert.Zero(t, f.rankings.invalidated())
}

func TestSubmitTest_MalformedStoredQuestion(t *testing.T) {
	f := newSubmissionFixture(t)
	test := testutil.CreateTest(t, f.db, "Broken Co", 2025, testutil.SectionSpec{Name: "Quant", Correct: []string{"A", "B"}})
	require.NoError(t, f.db.Model(&model.Question{}).Where("id = ?", test.Questions[1].ID).
		Update("options", `["A) only","B) two"]`).Error)

	_, err := f.svc.SubmitTest(context.Background(), test.ID, f.user.ID, SubmitTestInput{
		Answers: map[string]string{qid(test.Questions[0]): "A", qid(test.Questions[1]): "B"},
	})
	assertCode(t, err, apperr.KindInternal, apperr.CodeInternal)

	var attempts, metrics int64
	require.NoError(t, f.db.Model(&model.TestAttempt{}).Count(&attempts).Error)
	require.NoError(t, f.db.Model(&model.ProgressMetrics{}).Count(&metrics).Error)
	assert.Zero(t, attempts)
	assert.Zero(t, metrics)
}

func TestSubmitTest_MetricsRowCreatedConcurrently(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	test := testutil.CreateTest(t, f.db, "Cognizant", 2025,
		testutil.SectionSpec{Name: "Quantitative Aptitude", Correct: []string{"A", "A", "A", "A", "A"}},
	)

	// Another submission commits its first metrics row for the subject just
	// before this one inserts.
	competed := false
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:competing_metrics", func(tx *gorm.DB) {
		if competed || tx.Statement.Table != "progress_metrics" {
			return
		}
		competed = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO progress_metrics (user_id, subject_area, accuracy_rate, total_attempts, last_updated) VALUES (?, ?, ?, ?, ?)",
			f.user.ID, "Quantitative Aptitude", 100.0, 1, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	}))

	answers := make(map[string]string)
	for _, q := range test.Questions {
		answers[qid(q)] = "B"
	}
	res, err := f.svc.SubmitTest(ctx, test.ID, f.user.ID, SubmitTestInput{Answers: answers})
	require.NoError(t, err)
	assert.Zero(t, res.Score)
	assert.True(t, competed)

	var rows []model.ProgressMetrics
	require.NoError(t, f.db.Where("user_id = ?", f.user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].TotalAttempts)
	assert.InDelta(t, 50.0, rows[0].AccuracyRate, 1e-9)

	var attempts int64
	require.NoError(t, f.db.Model(&model.TestAttempt{}).Count(&attempts).Error)
	assert.Equal(t, int64(1), attempts)
}

func TestSubmitTest_ConcurrentFirstSubmissions(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	test := testutil.CreateTest(t, f.db, "HCL", 2025,
		testutil.SectionSpec{Name: "Logical Reasoning", Correct: []string{"A", "A"}},
	)
	answers := map[string]string{qid(test.Questions[0]): "A", qid(test.Questions[1]): "B"}

	const submissions = 4
	var g errgroup.Group
	for i := 0; i < submissions; i++ {
		g.Go(func() error {
			_, err := f.svc.SubmitTest(ctx, test.ID, f.user.ID, SubmitTestInput{Answers: answers})
			return err
		})
	}
	require.NoError(t, g.Wait())

	metrics, err := repository.NewProgressMetricsRepository(f.db).FindByUserAndSubject(ctx, f.user.ID, "Logical Reasoning")
	require.NoError(t, err)
	assert.Equal(t, submissions, metrics.TotalAttempts)
	assert.InDelta(t, 50.0, metrics.AccuracyRate, 1e-9)

	var attempts int64
	require.NoError(t, f.db.Model(&model.TestAttempt{}).Count(&attempts).Error)
	assert.Equal(t, int64(submissions), attempts)
}

func TestGetResults(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	test := testutil.CreateTest(t, f.db, "Accenture", 2025, testutil.SectionSpec{Name: "Verbal Ability", Correct: []string{"C", "D"}})

	submitted, err := f.svc.SubmitTest(ctx, test.ID, f.user.ID, SubmitTestInput{
		Answers:   map[string]string{qid(test.Questions[0]): "c", qid(test.Questions[1]): "A"},
		TimeTaken: 90,
	})
	require.NoError(t, err)

	res, err := f.svc.GetResults(ctx, test.ID, submitted.AttemptID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.AttemptID, res.AttemptID)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 50.0, res.Percentage)
	assert.Equal(t, 90, res.TimeTaken)
	assert.Equal(t, "c", res.Results[0].UserAnswer)
	assert.Equal(t, submitted.SectionScores, res.SectionScores)

	other := testutil.CreateUser(t, f.db, "Someone Else", 2, "IT")
	_, err = f.svc.GetResults(ctx, test.ID, submitted.AttemptID, other.ID)
	assertCode(t, err, apperr.KindNotFound, apperr.CodeAttemptNotFound)

	_, err = f.svc.GetResults(ctx, test.ID+1, submitted.AttemptID, f.user.ID)
	assertCode(t, err, apperr.KindNotFound, apperr.CodeAttemptNotFound)
}

func TestGetUserAttemptsForTest(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	test := testutil.CreateTest(t, f.db, "IBM", 2025, testutil.SectionSpec{Name: "Quant", Correct: []string{"A", "B", "C"}})
	other := testutil.CreateUser(t, f.db, "Other Student", 1, "ME")

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	testutil.CreateAttempt(t, f.db, f.user.ID, test.ID, 1, 3, 100, base)
	testutil.CreateAttempt(t, f.db, f.user.ID, test.ID, 3, 3, 100, base.Add(time.Hour))
	testutil.CreateAttempt(t, f.db, other.ID, test.ID, 2, 3, 100, base)

	attempts, err := f.svc.GetUserAttemptsForTest(ctx, test.ID, f.user.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	var percentages []float64
	for _, a := range attempts {
		assert.Equal(t, test.ID, a.TestID)
		percentages = append(percentages, a.Percentage)
	}
	assert.ElementsMatch(t, []float64{33.3, 100}, percentages)

	none, err := f.svc.GetUserAttemptsForTest(ctx, test.ID+100, f.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func assertCode(t *testing.T, err error, kind apperr.Kind, code string) {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, kind, appErr.Kind)
	assert.Equal(t, code, appErr.Code)
}
