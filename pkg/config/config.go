package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env         string
	ServiceName string
	Port        int
	APIPrefix   string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Performance   PerformanceConfig
	Notifications NotificationsConfig
	Workflow      WorkflowConfig
	Exports       ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	SingleSession     bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PerformanceConfig holds the regional scoring calibration and cache/snapshot tuning.
type PerformanceConfig struct {
	WindowDays          int
	TitheTarget         float64
	MembersTarget       float64
	ExpectedSubmissions float64
	WeightTithe         float64
	WeightMembers       float64
	WeightSubmissions   float64
	WeightComments      float64

	CacheEnabled     bool
	CacheTTL         time.Duration
	SnapshotEnabled  bool
	SnapshotSchedule string
}

// NotificationsConfig controls asynchronous notification delivery.
type NotificationsConfig struct {
	Async      bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// WorkflowConfig tunes the approval workflows.
type WorkflowConfig struct {
	MinReasonLength int
}

// ExportsConfig gates the CSV/PDF export endpoints.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.ServiceName = v.GetString("SERVICE_NAME")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Performance = PerformanceConfig{
		WindowDays:          v.GetInt("PERFORMANCE_WINDOW_DAYS"),
		TitheTarget:         v.GetFloat64("PERFORMANCE_TITHE_TARGET"),
		MembersTarget:       v.GetFloat64("PERFORMANCE_MEMBERS_TARGET"),
		ExpectedSubmissions: v.GetFloat64("PERFORMANCE_EXPECTED_SUBMISSIONS"),
		WeightTithe:         v.GetFloat64("PERFORMANCE_WEIGHT_TITHE"),
		WeightMembers:       v.GetFloat64("PERFORMANCE_WEIGHT_MEMBERS"),
		WeightSubmissions:   v.GetFloat64("PERFORMANCE_WEIGHT_SUBMISSIONS"),
		WeightComments:      v.GetFloat64("PERFORMANCE_WEIGHT_COMMENTS"),
		CacheEnabled:        v.GetBool("PERFORMANCE_CACHE_ENABLED"),
		CacheTTL:            parseDuration(v.GetString("PERFORMANCE_CACHE_TTL"), 10*time.Minute),
		SnapshotEnabled:     v.GetBool("PERFORMANCE_SNAPSHOT_ENABLED"),
		SnapshotSchedule:    v.GetString("PERFORMANCE_SNAPSHOT_SCHEDULE"),
	}

	cfg.Notifications = NotificationsConfig{
		Async:      v.GetBool("NOTIFICATIONS_ASYNC"),
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		Retries:    v.GetInt("NOTIFICATIONS_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), time.Second),
	}

	cfg.Workflow = WorkflowConfig{
		MinReasonLength: v.GetInt("CHANGE_REQUEST_MIN_REASON"),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("SERVICE_NAME", "region-ops-api")
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "region_ops")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "region-ops-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PERFORMANCE_WINDOW_DAYS", 90)
	v.SetDefault("PERFORMANCE_TITHE_TARGET", 1000000)
	v.SetDefault("PERFORMANCE_MEMBERS_TARGET", 500)
	v.SetDefault("PERFORMANCE_EXPECTED_SUBMISSIONS", 12)
	v.SetDefault("PERFORMANCE_WEIGHT_TITHE", 0.4)
	v.SetDefault("PERFORMANCE_WEIGHT_MEMBERS", 0.3)
	v.SetDefault("PERFORMANCE_WEIGHT_SUBMISSIONS", 0.2)
	v.SetDefault("PERFORMANCE_WEIGHT_COMMENTS", 0.1)
	v.SetDefault("PERFORMANCE_CACHE_ENABLED", true)
	v.SetDefault("PERFORMANCE_CACHE_TTL", "10m")
	v.SetDefault("PERFORMANCE_SNAPSHOT_ENABLED", false)
	v.SetDefault("PERFORMANCE_SNAPSHOT_SCHEDULE", "0 0 */6 * * *")

	v.SetDefault("NOTIFICATIONS_ASYNC", false)
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "1s")

	v.SetDefault("CHANGE_REQUEST_MIN_REASON", 10)
	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
