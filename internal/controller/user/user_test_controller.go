package user

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/controller"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/middleware"
	"github.com/lshigami/PlacementPrep/internal/service"
	"github.com/rs/zerolog/log"
)

// Bounds accepted over HTTP. The generation service itself allows 1..100.
const (
	minRequestQuestions = 5
	maxRequestQuestions = 50
	minRequestYear      = 2020
	maxRequestYear      = 2030
)

type UserTestController struct {
	userTestService       service.UserTestService
	generationService     service.TestGenerationService
	testSubmissionService service.TestSubmissionService
}

func NewUserTestController(uts service.UserTestService, gs service.TestGenerationService, tss service.TestSubmissionService) *UserTestController {
	return &UserTestController{
		userTestService:       uts,
		generationService:     gs,
		testSubmissionService: tss,
	}
}

// GenerateTest godoc
// @Summary Generate a company placement test
// @Description Researches the company's exam pattern and synthesizes questions. A test generated for the same company and year in the last 24 hours is returned instead unless force_regenerate is set.
// @Tags Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.GenerateTestRequest true "Company, question count and year"
// @Success 201 {object} dto.TestGenerationResult "Newly generated"
// @Success 200 {object} dto.TestGenerationResult "Served from cache"
// @Failure 400 {object} dto.ErrorResponse "Invalid company, question count or year"
// @Failure 502 {object} dto.ErrorResponse "Generation failed"
// @Failure 503 {object} dto.ErrorResponse "Research provider unavailable"
// @Failure 500 {object} dto.ErrorResponse "Storage failed"
// @Router /tests/generate [post]
func (c *UserTestController) GenerateTest(ctx *gin.Context) {
	var req dto.GenerateTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.RespondBindError(ctx, "GenerateTest", err)
		return
	}
	if err := validateGenerateRequest(&req); err != nil {
		controller.RespondError(ctx, "GenerateTest", err)
		return
	}

	log.Ctx(ctx.Request.Context()).Info().
		Str("company", req.Company).
		Int("numQuestions", req.NumQuestions).
		Int("year", req.Year).
		Bool("force", req.ForceRegenerate).
		Msg("Test generation requested")

	result, err := c.generationService.GenerateTest(ctx.Request.Context(), service.GenerateTestInput{
		Company:         req.Company,
		NumQuestions:    req.NumQuestions,
		Year:            req.Year,
		ForceRegenerate: req.ForceRegenerate,
	})
	if err != nil {
		controller.RespondError(ctx, "GenerateTest", err)
		return
	}
	status := http.StatusCreated
	if result.FromCache {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}

func validateGenerateRequest(req *dto.GenerateTestRequest) error {
	req.Company = strings.TrimSpace(req.Company)
	if req.Company == "" {
		return apperr.Validation(apperr.CodeInvalidCompany, "company", "company name is required")
	}
	if req.NumQuestions != 0 && (req.NumQuestions < minRequestQuestions || req.NumQuestions > maxRequestQuestions) {
		return apperr.Validation(apperr.CodeInvalidQuestionCount, "num_questions", "num_questions must be between 5 and 50")
	}
	if req.Year != 0 && (req.Year < minRequestYear || req.Year > maxRequestYear) {
		return apperr.Validation(apperr.CodeInvalidYear, "year", "year must be between 2020 and 2030")
	}
	return nil
}

// GetAllTests godoc
// @Summary List generated tests
// @Tags Tests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [get]
func (c *UserTestController) GetAllTests(ctx *gin.Context) {
	tests, err := c.userTestService.GetAllTests(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, "GetAllTests", err)
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetCompanies godoc
// @Summary List supported companies with their generated test counts
// @Tags Tests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.CompanyInfo
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests/companies [get]
func (c *UserTestController) GetCompanies(ctx *gin.Context) {
	companies, err := c.userTestService.ListCompanies(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, "GetCompanies", err)
		return
	}
	ctx.JSON(http.StatusOK, companies)
}

// GetTestDetails godoc
// @Summary Get a test grouped by section
// @Description Questions are shuffled within each section unless randomize=false. Answers are only returned to admins.
// @Tags Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param include_answers query bool false "Include correct answers and explanations (admin only)"
// @Param randomize query bool false "Shuffle questions within sections (default true)"
// @Param section query string false "Only sections whose name contains this text"
// @Success 200 {object} dto.TestDetailResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 403 {object} dto.ErrorResponse "Answers requested by a non-admin"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id} [get]
func (c *UserTestController) GetTestDetails(ctx *gin.Context) {
	testID, ok := controller.ParseIDParam(ctx, "test_id")
	if !ok {
		return
	}
	var q dto.GetTestQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		controller.RespondBindError(ctx, "GetTestDetails", err)
		return
	}
	opts := service.GetTestOptions{
		IncludeAnswers: q.IncludeAnswers,
		Randomize:      q.Randomize == nil || *q.Randomize,
		Section:        q.Section,
	}

	details, err := c.userTestService.GetTest(ctx.Request.Context(), testID, middleware.CurrentUser(ctx), opts)
	if err != nil {
		controller.RespondError(ctx, "GetTestDetails", err)
		return
	}
	ctx.JSON(http.StatusOK, details)
}

// SubmitTest godoc
// @Summary Submit answers for a test
// @Description Scores the submission, stores the attempt and updates per-subject progress.
// @Tags Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param submission body dto.SubmitTestRequest true "Answers keyed by question id"
// @Success 200 {object} dto.ScoringResult
// @Failure 400 {object} dto.ErrorResponse "Missing answers or test without questions"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 500 {object} dto.ErrorResponse "Error saving submission"
// @Router /tests/{test_id}/submit [post]
func (c *UserTestController) SubmitTest(ctx *gin.Context) {
	testID, ok := controller.ParseIDParam(ctx, "test_id")
	if !ok {
		return
	}
	var req dto.SubmitTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.RespondBindError(ctx, "SubmitTest", err)
		return
	}

	user := middleware.CurrentUser(ctx)
	result, err := c.testSubmissionService.SubmitTest(ctx.Request.Context(), testID, user.ID, service.SubmitTestInput{
		Answers:   req.Answers,
		TimeTaken: req.TimeTaken,
		StartedAt: req.StartedAt,
	})
	if err != nil {
		controller.RespondError(ctx, "SubmitTest", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetResults godoc
// @Summary Get the scored result of one of your attempts
// @Tags Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.ScoringResult
// @Failure 400 {object} dto.ErrorResponse "Invalid ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /tests/{test_id}/results/{attempt_id} [get]
func (c *UserTestController) GetResults(ctx *gin.Context) {
	testID, ok := controller.ParseIDParam(ctx, "test_id")
	if !ok {
		return
	}
	attemptID, ok := controller.ParseIDParam(ctx, "attempt_id")
	if !ok {
		return
	}

	user := middleware.CurrentUser(ctx)
	result, err := c.testSubmissionService.GetResults(ctx.Request.Context(), testID, attemptID, user.ID)
	if err != nil {
		controller.RespondError(ctx, "GetResults", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetUserTestAttempts godoc
// @Summary List your attempts on a test
// @Tags Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {array} dto.TestAttemptSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Router /tests/{test_id}/my-attempts [get]
func (c *UserTestController) GetUserTestAttempts(ctx *gin.Context) {
	testID, ok := controller.ParseIDParam(ctx, "test_id")
	if !ok {
		return
	}
	user := middleware.CurrentUser(ctx)
	attempts, err := c.testSubmissionService.GetUserAttemptsForTest(ctx.Request.Context(), testID, user.ID)
	if err != nil {
		controller.RespondError(ctx, "GetUserTestAttempts", err)
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}
