package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	DataDir        string // <symbol>.parquet 시세 디렉토리
	ResultsDir     string
	StrategyConfig string
	StocklistPath  string
	PriceBackend   string // parquet, postgres
	ResultBackend  string // file, sqlite, postgres
	SQLitePath     string

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Engine
	Engine EngineConfig

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string // 비어 있으면 stderr만

	// Monitoring
	MetricsEnabled bool

	// Scheduler
	BatchSchedule string
	BatchLookback int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// EngineConfig holds selection/batch execution settings
type EngineConfig struct {
	Workers         int
	BatchWorkers    int
	PartitionSize   int
	HistoryTail     int     // 평가일 기준 최근 N개 봉만 사용
	ReferenceSymbol string  // 거래일 판정용 기준 종목
	LoadRateLimit   float64 // 초당 시계열 로드 수 (0 = 무제한)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Storage
		DataDir:        getEnv("DATA_DIR", "data"),
		ResultsDir:     getEnv("RESULTS_DIR", "results"),
		StrategyConfig: getEnv("STRATEGY_CONFIG", "config/strategies.yaml"),
		StocklistPath:  getEnv("STOCKLIST_PATH", "stocklist.csv"),
		PriceBackend:   getEnv("PRICE_BACKEND", "parquet"),
		ResultBackend:  getEnv("RESULT_BACKEND", "file"),
		SQLitePath:     getEnv("SQLITE_PATH", "results/zscreen.db"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "zscreen"),
			User:            getEnv("DB_USER", "zscreen"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			TTL:      getEnvAsDuration("REDIS_SERIES_TTL", "12h"),
		},

		// Engine
		Engine: EngineConfig{
			Workers:         getEnvAsInt("WORKERS", 8),
			BatchWorkers:    getEnvAsInt("BATCH_WORKERS", 2),
			PartitionSize:   getEnvAsInt("PARTITION_SIZE", 200),
			HistoryTail:     getEnvAsInt("HISTORY_TAIL", 400),
			ReferenceSymbol: getEnv("REFERENCE_SYMBOL", "000001"),
			LoadRateLimit:   getEnvAsFloat("LOAD_RATE_LIMIT", 0),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		// Scheduler
		BatchSchedule: getEnv("BATCH_SCHEDULE", "0 30 18 * * 1-5"),
		BatchLookback: getEnvAsInt("BATCH_LOOKBACK_DAYS", 20),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.PriceBackend {
	case "parquet":
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for parquet backend")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres backend")
		}
	default:
		return fmt.Errorf("PRICE_BACKEND must be one of: parquet, postgres")
	}

	switch c.ResultBackend {
	case "file", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres results")
		}
	default:
		return fmt.Errorf("RESULT_BACKEND must be one of: file, sqlite, postgres")
	}

	if c.Engine.Workers < 1 || c.Engine.BatchWorkers < 1 {
		return fmt.Errorf("WORKERS and BATCH_WORKERS must be >= 1")
	}
	if c.Engine.PartitionSize < 1 {
		return fmt.Errorf("PARTITION_SIZE must be >= 1")
	}
	if c.Engine.HistoryTail < 1 {
		return fmt.Errorf("HISTORY_TAIL must be >= 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
