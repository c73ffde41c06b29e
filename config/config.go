package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server     Server
	Database   Database
	Gemini     Gemini
	Research   Research
	Perplexity Perplexity
	Synthesis  Synthesis
	Generation Generation
	Redis      Redis
	Auth       Auth
	Log        Log
}

type Server struct {
	Port string
	Mode string
}

type Database struct {
	Driver   string // "postgres" or "sqlite"
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file
}

type Gemini struct {
	APIKey         string
	ResearchModel  string
	SynthesisModel string
}

type Research struct {
	Provider   string // "gemini" or "perplexity"
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type Perplexity struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Synthesis struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	ChunkThreshold int
	ChunkSize      int
}

type Generation struct {
	CacheWindow      time.Duration
	BatchConcurrency int
}

type Redis struct {
	Addr           string
	Password       string
	DB             int
	LeaderboardTTL time.Duration
}

type Auth struct {
	JWTSecret string
}

type Log struct {
	Level  string
	Format string
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")

	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("DATABASE_PATH", "placement_prep.db")

	viper.SetDefault("GEMINI_RESEARCH_MODEL", "gemini-2.5-flash")
	viper.SetDefault("GEMINI_SYNTHESIS_MODEL", "gemini-2.5-flash")

	viper.SetDefault("RESEARCH_PROVIDER", "gemini")
	viper.SetDefault("RESEARCH_TIMEOUT", 90*time.Second)
	viper.SetDefault("RESEARCH_MAX_RETRIES", 3)
	viper.SetDefault("RESEARCH_RETRY_DELAY", 2*time.Second)

	viper.SetDefault("PERPLEXITY_BASE_URL", "https://api.perplexity.ai")
	viper.SetDefault("PERPLEXITY_MODEL", "sonar-deep-research")

	viper.SetDefault("SYNTHESIS_TIMEOUT", 60*time.Second)
	viper.SetDefault("SYNTHESIS_MAX_RETRIES", 3)
	viper.SetDefault("SYNTHESIS_RETRY_DELAY", 2*time.Second)
	viper.SetDefault("SYNTHESIS_CHUNK_THRESHOLD", 15)
	viper.SetDefault("SYNTHESIS_CHUNK_SIZE", 8)

	viper.SetDefault("GENERATION_CACHE_WINDOW", 24*time.Hour)
	viper.SetDefault("GENERATION_BATCH_CONCURRENCY", 3)

	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_LEADERBOARD_TTL", 60*time.Second)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Server.Mode = viper.GetString("SERVER_MODE")

	config.Database.Driver = viper.GetString("DATABASE_DRIVER")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")
	config.Database.SSLMode = viper.GetString("DATABASE_SSLMODE")
	config.Database.Path = viper.GetString("DATABASE_PATH")

	config.Gemini.APIKey = viper.GetString("GEMINI_API_KEY")
	config.Gemini.ResearchModel = viper.GetString("GEMINI_RESEARCH_MODEL")
	config.Gemini.SynthesisModel = viper.GetString("GEMINI_SYNTHESIS_MODEL")

	config.Research.Provider = viper.GetString("RESEARCH_PROVIDER")
	config.Research.Timeout = viper.GetDuration("RESEARCH_TIMEOUT")
	config.Research.MaxRetries = viper.GetInt("RESEARCH_MAX_RETRIES")
	config.Research.RetryDelay = viper.GetDuration("RESEARCH_RETRY_DELAY")

	config.Perplexity.APIKey = viper.GetString("PERPLEXITY_API_KEY")
	config.Perplexity.BaseURL = viper.GetString("PERPLEXITY_BASE_URL")
	config.Perplexity.Model = viper.GetString("PERPLEXITY_MODEL")

	config.Synthesis.Timeout = viper.GetDuration("SYNTHESIS_TIMEOUT")
	config.Synthesis.MaxRetries = viper.GetInt("SYNTHESIS_MAX_RETRIES")
	config.Synthesis.RetryDelay = viper.GetDuration("SYNTHESIS_RETRY_DELAY")
	config.Synthesis.ChunkThreshold = viper.GetInt("SYNTHESIS_CHUNK_THRESHOLD")
	config.Synthesis.ChunkSize = viper.GetInt("SYNTHESIS_CHUNK_SIZE")

	config.Generation.CacheWindow = viper.GetDuration("GENERATION_CACHE_WINDOW")
	config.Generation.BatchConcurrency = viper.GetInt("GENERATION_BATCH_CONCURRENCY")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")
	config.Redis.LeaderboardTTL = viper.GetDuration("REDIS_LEADERBOARD_TTL")

	config.Auth.JWTSecret = viper.GetString("JWT_SECRET")

	config.Log.Level = viper.GetString("LOG_LEVEL")
	config.Log.Format = viper.GetString("LOG_FORMAT")

	log.Info().
		Str("port", config.Server.Port).
		Str("db_driver", config.Database.Driver).
		Str("research_provider", config.Research.Provider).
		Bool("redis_enabled", config.Redis.Addr != "").
		Msg("Config loaded")
	return &config, nil
}
