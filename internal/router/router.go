package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/config"
	"github.com/lshigami/PlacementPrep/internal/controller"
	adminctrl "github.com/lshigami/PlacementPrep/internal/controller/admin"
	userctrl "github.com/lshigami/PlacementPrep/internal/controller/user"
	"github.com/lshigami/PlacementPrep/internal/middleware"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	fx.In

	Auth        *middleware.AuthMiddleware
	Tests       *userctrl.UserTestController
	Dashboard   *userctrl.DashboardController
	Leaderboard *userctrl.LeaderboardController
	AdminTests  *adminctrl.AdminTestController
}

func NewGinEngine(cfg *config.Config) *gin.Engine {
	switch strings.ToLower(cfg.Server.Mode) {
	case gin.ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		event := log.Info()
		if param.StatusCode >= 500 {
			event = log.Error()
		} else if param.StatusCode >= 400 {
			event = log.Warn()
		}
		reqID, _ := param.Keys["request_id"].(string)
		event.
			Str("request_id", reqID).
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

// RegisterRoutes mounts the API under /api/v1. Everything except /healthz
// requires a bearer token; /admin additionally requires an admin user.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/healthz", controller.Healthz)

	api := r.Group("/api/v1", h.Auth.RequireAuth())
	{
		tests := api.Group("/tests")
		tests.POST("/generate", h.Tests.GenerateTest)
		tests.GET("", h.Tests.GetAllTests)
		tests.GET("/companies", h.Tests.GetCompanies)
		tests.GET("/:test_id", h.Tests.GetTestDetails)
		tests.POST("/:test_id/submit", h.Tests.SubmitTest)
		tests.GET("/:test_id/results/:attempt_id", h.Tests.GetResults)
		tests.GET("/:test_id/my-attempts", h.Tests.GetUserTestAttempts)

		dashboard := api.Group("/dashboard")
		dashboard.GET("/progress", h.Dashboard.GetProgress)
		dashboard.GET("/weak-areas", h.Dashboard.GetWeakAreas)
		dashboard.GET("/recommendations", h.Dashboard.GetRecommendations)

		leaderboard := api.Group("/leaderboard")
		leaderboard.GET("", h.Leaderboard.GetLeaderboard)
		leaderboard.GET("/position", h.Leaderboard.GetUserPosition)
		leaderboard.GET("/filters", h.Leaderboard.GetFilters)
		leaderboard.GET("/stats", h.Leaderboard.GetStats)

		admin := api.Group("/admin", h.Auth.RequireAdmin())
		admin.POST("/tests/generate-batch", h.AdminTests.GenerateBatch)
		admin.DELETE("/tests/:test_id", h.AdminTests.DeleteTest)
		admin.GET("/tests/stats", h.AdminTests.GetStatistics)
	}
}
