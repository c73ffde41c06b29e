package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/internal/controller"
	"github.com/lshigami/PlacementPrep/internal/middleware"
	"github.com/lshigami/PlacementPrep/internal/service"
)

type DashboardController struct {
	analyticsService service.AnalyticsService
}

func NewDashboardController(analyticsService service.AnalyticsService) *DashboardController {
	return &DashboardController{analyticsService: analyticsService}
}

// GetProgress godoc
// @Summary Your overall progress
// @Description Totals, average score, improvement trend, per-subject accuracy, recent attempts, strengths and weaknesses.
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UserProgress
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /dashboard/progress [get]
func (c *DashboardController) GetProgress(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	progress, err := c.analyticsService.ComputeProgress(ctx.Request.Context(), user.ID)
	if err != nil {
		controller.RespondError(ctx, "GetProgress", err)
		return
	}
	ctx.JSON(http.StatusOK, progress)
}

// GetWeakAreas godoc
// @Summary Subjects below 60% accuracy, weakest first
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.WeakArea
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /dashboard/weak-areas [get]
func (c *DashboardController) GetWeakAreas(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	areas, err := c.analyticsService.WeakAreas(ctx.Request.Context(), user.ID)
	if err != nil {
		controller.RespondError(ctx, "GetWeakAreas", err)
		return
	}
	ctx.JSON(http.StatusOK, areas)
}

// GetRecommendations godoc
// @Summary Study recommendations
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.Recommendations
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /dashboard/recommendations [get]
func (c *DashboardController) GetRecommendations(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	recs, err := c.analyticsService.Recommendations(ctx.Request.Context(), user.ID)
	if err != nil {
		controller.RespondError(ctx, "GetRecommendations", err)
		return
	}
	ctx.JSON(http.StatusOK, recs)
}
