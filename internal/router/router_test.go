package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/config"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/cache"
	adminctrl "github.com/lshigami/PlacementPrep/internal/controller/admin"
	userctrl "github.com/lshigami/PlacementPrep/internal/controller/user"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/middleware"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/lshigami/PlacementPrep/internal/service"
	"github.com/lshigami/PlacementPrep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-secret"

type fixedResearch struct{}

func (fixedResearch) Research(_ context.Context, company string) (*service.ResearchResult, error) {
	return &service.ResearchResult{Content: "Exam pattern for " + company, Provider: "fixed"}, nil
}

// fixedSynthesis returns one section where every answer is A.
type fixedSynthesis struct{}

func (fixedSynthesis) Synthesize(_ context.Context, _, company string, count int) (*service.SynthesisResult, error) {
	sec := service.SynthesizedSection{Name: "Quantitative Aptitude", TimeLimitMinutes: 20}
	for i := 1; i <= count; i++ {
		sec.Questions = append(sec.Questions, service.SynthesizedQuestion{
			ID:            i,
			QuestionText:  fmt.Sprintf("%s question %d", company, i),
			Options:       []string{"A) 1", "B) 2", "C) 3", "D) 4"},
			CorrectAnswer: "A",
			Explanation:   "worked solution",
			Difficulty:    "easy",
		})
	}
	return &service.SynthesisResult{Sections: []service.SynthesizedSection{sec}, TotalQuestions: count}, nil
}

func (s fixedSynthesis) SynthesizeChunked(ctx context.Context, research, company string, count, _ int) (*service.SynthesisResult, error) {
	return s.Synthesize(ctx, research, company, count)
}

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
}

func (c apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func newTestServer(t *testing.T) (apiClient, string, string) {
	t.Helper()
	db := testutil.NewDB(t)
	student := testutil.CreateUser(t, db, "Asha Rao", 3, "CSE")
	admin := testutil.CreateAdmin(t, db, "Admin User")

	cfg := &config.Config{
		Server:     config.Server{Mode: "test"},
		Generation: config.Generation{CacheWindow: 24 * time.Hour, BatchConcurrency: 3},
		Synthesis:  config.Synthesis{ChunkThreshold: 15, ChunkSize: 8},
		Auth:       config.Auth{JWTSecret: secret},
	}

	testRepo := repository.NewTestRepository(db)
	attemptRepo := repository.NewTestAttemptRepository(db)
	metricsRepo := repository.NewProgressMetricsRepository(db)
	rankings := cache.NewRankingCache(cfg)

	generation := service.NewTestGenerationService(db, testRepo, repository.NewQuestionRepository(db),
		fixedResearch{}, fixedSynthesis{}, rankings, cfg)
	submission := service.NewTestSubmissionService(db, testRepo, attemptRepo, metricsRepo, rankings)

	engine := NewGinEngine(cfg)
	RegisterRoutes(engine, Handlers{
		Auth:        middleware.NewAuthMiddleware(cfg, repository.NewUserRepository(db)),
		Tests:       userctrl.NewUserTestController(service.NewUserTestService(testRepo, attemptRepo), generation, submission),
		Dashboard:   userctrl.NewDashboardController(service.NewAnalyticsService(attemptRepo, metricsRepo)),
		Leaderboard: userctrl.NewLeaderboardController(service.NewLeaderboardService(repository.NewLeaderboardRepository(db), attemptRepo, rankings)),
		AdminTests:  adminctrl.NewAdminTestController(generation),
	})

	studentToken, err := middleware.IssueToken(secret, student.ID, time.Hour)
	require.NoError(t, err)
	adminToken, err := middleware.IssueToken(secret, admin.ID, time.Hour)
	require.NoError(t, err)
	return apiClient{t: t, engine: engine}, studentToken, adminToken
}

func TestHealthzIsPublic(t *testing.T) {
	api, _, _ := newTestServer(t)
	w := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestAPIRequiresToken(t *testing.T) {
	api, _, _ := newTestServer(t)
	w := api.do(http.MethodGet, "/api/v1/tests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperr.CodeUnauthorized, decode[dto.ErrorResponse](t, w).Code)
}

func TestGenerateAndTakeTest(t *testing.T) {
	api, student, _ := newTestServer(t)

	w := api.do(http.MethodPost, "/api/v1/tests/generate", student, dto.GenerateTestRequest{Company: "TCS NQT", NumQuestions: 10, Year: 2025})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	generated := decode[dto.TestGenerationResult](t, w)
	assert.False(t, generated.FromCache)
	assert.Equal(t, 10, generated.NumQuestions)
	assert.Equal(t, []string{"Quantitative Aptitude"}, generated.Sections)

	w = api.do(http.MethodPost, "/api/v1/tests/generate", student, dto.GenerateTestRequest{Company: "TCS NQT", NumQuestions: 10, Year: 2025})
	require.Equal(t, http.StatusOK, w.Code)
	cached := decode[dto.TestGenerationResult](t, w)
	assert.True(t, cached.FromCache)
	assert.Equal(t, generated.TestID, cached.TestID)

	testPath := "/api/v1/tests/" + strconv.FormatUint(uint64(generated.TestID), 10)
	w = api.do(http.MethodGet, testPath+"?randomize=false", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	details := decode[dto.TestDetailResponse](t, w)
	require.Len(t, details.Sections, 1)
	questions := details.Sections[0].Questions
	require.Len(t, questions, 10)
	for _, q := range questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	w = api.do(http.MethodGet, testPath+"?include_answers=true", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	answers := make(map[string]string, len(questions))
	for i, q := range questions {
		label := "B"
		if i == 0 {
			label = "A"
		}
		answers[strconv.FormatUint(uint64(q.ID), 10)] = label
	}
	w = api.do(http.MethodPost, testPath+"/submit", student, dto.SubmitTestRequest{Answers: answers, TimeTaken: 300})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scored := decode[dto.ScoringResult](t, w)
	assert.Equal(t, 1.0, scored.Score)
	assert.Equal(t, 10.0, scored.Percentage)
	assert.Equal(t, 1, scored.SectionScores["Quantitative Aptitude"].Score)

	w = api.do(http.MethodGet, fmt.Sprintf("%s/results/%d", testPath, scored.AttemptID), student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scored.AttemptID, decode[dto.ScoringResult](t, w).AttemptID)

	w = api.do(http.MethodGet, testPath+"/my-attempts", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.TestAttemptSummaryDTO](t, w), 1)

	w = api.do(http.MethodGet, "/api/v1/dashboard/progress", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode[dto.UserProgress](t, w)
	assert.Equal(t, 1, progress.TotalTests)
	assert.Equal(t, 10.0, progress.AverageScore)

	// one attempt is not enough to be ranked
	w = api.do(http.MethodGet, "/api/v1/leaderboard", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.LeaderboardResponse](t, w).Leaderboard)
}

func TestGenerateValidation(t *testing.T) {
	api, student, _ := newTestServer(t)

	tests := []struct {
		name string
		req  dto.GenerateTestRequest
		code string
	}{
		{"blank company", dto.GenerateTestRequest{Company: "   "}, apperr.CodeInvalidCompany},
		{"too few questions", dto.GenerateTestRequest{Company: "Wipro", NumQuestions: 4}, apperr.CodeInvalidQuestionCount},
		{"too many questions", dto.GenerateTestRequest{Company: "Wipro", NumQuestions: 51}, apperr.CodeInvalidQuestionCount},
		{"year too early", dto.GenerateTestRequest{Company: "Wipro", Year: 2019}, apperr.CodeInvalidYear},
		{"year too late", dto.GenerateTestRequest{Company: "Wipro", Year: 2031}, apperr.CodeInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/v1/tests/generate", student, tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[dto.ErrorResponse](t, w).Code)
		})
	}
}

func TestSubmitWithoutAnswers(t *testing.T) {
	api, student, _ := newTestServer(t)
	w := api.do(http.MethodPost, "/api/v1/tests/generate", student, dto.GenerateTestRequest{Company: "Infosys", NumQuestions: 5})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[dto.TestGenerationResult](t, w).TestID

	w = api.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/submit", id), student, dto.SubmitTestRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeMissingAnswers, decode[dto.ErrorResponse](t, w).Code)

	w = api.do(http.MethodGet, "/api/v1/tests/abc", student, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	api, student, admin := newTestServer(t)

	w := api.do(http.MethodGet, "/api/v1/admin/tests/stats", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/api/v1/admin/tests/generate-batch", admin, dto.BatchGenerateRequest{
		Companies:    []string{"TCS NQT", "Wipro", " wipro "},
		NumQuestions: 5,
		Year:         2025,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	batch := decode[dto.BatchGenerationResult](t, w)
	assert.Equal(t, 2, batch.TotalCompanies)
	assert.Equal(t, 2, batch.Successful)

	w = api.do(http.MethodGet, "/api/v1/admin/tests/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[dto.GenerationStatistics](t, w).TotalTests)

	require.NotNil(t, batch.Results["Wipro"].Result)
	id := batch.Results["Wipro"].Result.TestID
	w = api.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/tests/%d", id), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/tests/%d", id), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
