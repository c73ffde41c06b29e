package user

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/internal/controller"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/middleware"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/lshigami/PlacementPrep/internal/service"
)

type LeaderboardController struct {
	leaderboardService service.LeaderboardService
}

func NewLeaderboardController(leaderboardService service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{leaderboardService: leaderboardService}
}

// GetLeaderboard godoc
// @Summary Ranked leaderboard
// @Description Users with at least 3 matching attempts, ordered by average score, then more tests, then less time. Names are shortened to first name and last initial.
// @Tags Leaderboard
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Entries per page (default 50, max 100)"
// @Param page query int false "Page number (default 1)"
// @Param company query string false "Only attempts on this company's tests"
// @Param year query int false "Only students of this year"
// @Param branch query string false "Only students of this branch"
// @Success 200 {object} dto.LeaderboardResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid query"
// @Router /leaderboard [get]
func (c *LeaderboardController) GetLeaderboard(ctx *gin.Context) {
	var q dto.LeaderboardQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		controller.RespondBindError(ctx, "GetLeaderboard", err)
		return
	}

	resp, err := c.leaderboardService.GetLeaderboard(ctx.Request.Context(), middleware.CurrentUser(ctx).ID, service.LeaderboardQuery{
		Limit:  q.Limit,
		Page:   q.Page,
		Filter: leaderboardFilter(q),
	})
	if err != nil {
		controller.RespondError(ctx, "GetLeaderboard", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetUserPosition godoc
// @Summary Your leaderboard position with up to two neighbours on each side
// @Tags Leaderboard
// @Produce json
// @Security BearerAuth
// @Param company query string false "Only attempts on this company's tests"
// @Param year query int false "Only students of this year"
// @Param branch query string false "Only students of this branch"
// @Success 200 {object} dto.UserPositionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid query"
// @Router /leaderboard/position [get]
func (c *LeaderboardController) GetUserPosition(ctx *gin.Context) {
	var q dto.LeaderboardQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		controller.RespondBindError(ctx, "GetUserPosition", err)
		return
	}

	resp, err := c.leaderboardService.GetUserPosition(ctx.Request.Context(), middleware.CurrentUser(ctx).ID, leaderboardFilter(q))
	if err != nil {
		controller.RespondError(ctx, "GetUserPosition", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetFilters godoc
// @Summary Values available for leaderboard filters
// @Tags Leaderboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.LeaderboardFilterOptions
// @Router /leaderboard/filters [get]
func (c *LeaderboardController) GetFilters(ctx *gin.Context) {
	opts, err := c.leaderboardService.Filters(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, "GetFilters", err)
		return
	}
	ctx.JSON(http.StatusOK, opts)
}

// GetStats godoc
// @Summary Platform-wide leaderboard statistics
// @Tags Leaderboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.LeaderboardStats
// @Router /leaderboard/stats [get]
func (c *LeaderboardController) GetStats(ctx *gin.Context) {
	stats, err := c.leaderboardService.Stats(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, "GetStats", err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func leaderboardFilter(q dto.LeaderboardQuery) repository.LeaderboardFilter {
	return repository.LeaderboardFilter{
		Company: strings.TrimSpace(q.Company),
		Year:    q.Year,
		Branch:  strings.TrimSpace(q.Branch),
	}
}
