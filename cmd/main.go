package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/config"
	"github.com/lshigami/PlacementPrep/database"
	_ "github.com/lshigami/PlacementPrep/docs" // Swagger docs
	"github.com/lshigami/PlacementPrep/internal/cache"
	adminctrl "github.com/lshigami/PlacementPrep/internal/controller/admin"
	userctrl "github.com/lshigami/PlacementPrep/internal/controller/user"
	"github.com/lshigami/PlacementPrep/internal/logger"
	"github.com/lshigami/PlacementPrep/internal/middleware"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/lshigami/PlacementPrep/internal/router"
	"github.com/lshigami/PlacementPrep/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title PlacementPrep API
// @version 1.0
// @description Company placement exam practice: AI generated tests, scoring, progress analytics and a leaderboard.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "placementprep",
		Short:        "Placement exam practice API",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), generateCmd(), tokenCmd())

	// "serve" is the default when no subcommand is given.
	root.RunE = serve.RunE
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app := fx.New(
				fx.Supply(cfg),
				coreModule,
				fx.Provide(
					router.NewGinEngine,
					middleware.NewAuthMiddleware,
					userctrl.NewUserTestController,
					userctrl.NewDashboardController,
					userctrl.NewLeaderboardController,
					adminctrl.NewAdminTestController,
				),
				fx.Invoke(AutoMigrateDB),
				fx.Invoke(RegisterRoutesAndStartServer),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewDatabase(cfg)
			if err != nil {
				return err
			}
			return AutoMigrateDB(db)
		},
	}
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate tests for one or more companies and print the batch result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			companies, _ := cmd.Flags().GetStringSlice("company")
			numQuestions, _ := cmd.Flags().GetInt("num-questions")
			year, _ := cmd.Flags().GetInt("year")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var (
				db        *gorm.DB
				generator service.TestGenerationService
			)
			app := fx.New(
				fx.NopLogger,
				fx.Supply(cfg),
				coreModule,
				fx.Populate(&db, &generator),
			)
			if err := app.Err(); err != nil {
				return err
			}
			if err := AutoMigrateDB(db); err != nil {
				return err
			}

			result, err := generator.GenerateBatch(cmd.Context(), companies, numQuestions, year)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d companies failed", result.Failed, result.TotalCompanies)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceP("company", "c", nil, "Company to generate a test for (repeatable)")
	f.IntP("num-questions", "n", service.DefaultNumQuestions, "Questions per test")
	f.IntP("year", "y", service.DefaultYear, "Exam year")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for a user, signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetUint("user-id")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := middleware.IssueToken(cfg.Auth.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint("user-id", 0, "User id to put in the subject claim")
	f.Duration("ttl", 72*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

var coreModule = fx.Options(
	fx.Provide(
		database.NewDatabase,
		cache.NewRankingCache,
	),
	fx.Provide(
		repository.NewTestRepository,
		repository.NewQuestionRepository,
		repository.NewTestAttemptRepository,
		repository.NewProgressMetricsRepository,
		repository.NewUserRepository,
		repository.NewLeaderboardRepository,
	),
	fx.Provide(
		service.NewResearchService,
		service.NewQuestionSynthesisService,
		service.NewTestGenerationService,
		service.NewTestSubmissionService,
		service.NewUserTestService,
		service.NewAnalyticsService,
		service.NewLeaderboardService,
	),
)

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(lc fx.Lifecycle, r *gin.Engine, cfg *config.Config, h router.Handlers) {
	router.RegisterRoutes(r, h)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("PlacementPrep API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			return server.Shutdown(ctx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	if err := db.AutoMigrate(model.All()...); err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
