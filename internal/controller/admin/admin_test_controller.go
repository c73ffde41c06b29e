package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/internal/controller"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminTestController struct {
	generationService service.TestGenerationService
}

func NewAdminTestController(generationService service.TestGenerationService) *AdminTestController {
	return &AdminTestController{generationService: generationService}
}

// GenerateBatch godoc
// @Summary (Admin) Generate tests for several companies
// @Description Runs up to three generations at a time. A failing company is reported in its own entry and does not affect the others.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BatchGenerateRequest true "Companies, question count and year"
// @Success 200 {object} dto.BatchGenerationResult
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 403 {object} dto.ErrorResponse "Admin access required"
// @Router /admin/tests/generate-batch [post]
func (c *AdminTestController) GenerateBatch(ctx *gin.Context) {
	var req dto.BatchGenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.RespondBindError(ctx, "GenerateBatch", err)
		return
	}

	companies := make([]string, 0, len(req.Companies))
	seen := make(map[string]bool, len(req.Companies))
	for _, name := range req.Companies {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		companies = append(companies, name)
	}

	log.Ctx(ctx.Request.Context()).Info().Strs("companies", companies).Msg("Admin batch generation requested")

	result, err := c.generationService.GenerateBatch(ctx.Request.Context(), companies, req.NumQuestions, req.Year)
	if err != nil {
		controller.RespondError(ctx, "GenerateBatch", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// DeleteTest godoc
// @Summary (Admin) Delete a test with its questions and attempts
// @Tags Admin - Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id} [delete]
func (c *AdminTestController) DeleteTest(ctx *gin.Context) {
	testID, ok := controller.ParseIDParam(ctx, "test_id")
	if !ok {
		return
	}
	if err := c.generationService.DeleteTest(ctx.Request.Context(), testID); err != nil {
		controller.RespondError(ctx, "DeleteTest", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "Test deleted successfully"})
}

// GetStatistics godoc
// @Summary (Admin) Generated content statistics
// @Tags Admin - Tests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.GenerationStatistics
// @Router /admin/tests/stats [get]
func (c *AdminTestController) GetStatistics(ctx *gin.Context) {
	stats, err := c.generationService.Statistics(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, "GetStatistics", err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
