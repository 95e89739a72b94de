package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
	// AllowedOrigins lists browser origins for CORS and the events websocket. Empty allows any origin
	// for CORS and only same-host origins for the websocket.
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
	AccessTTL    time.Duration
}

type DemoConfig struct {
	Enabled  bool
	WorkerID string
}

type InspectionConfig struct {
	ChecklistPath    string
	CommentMinLength int
	CommentMaxLength int
	SessionStore     string
	SessionTTL       time.Duration
}

type AnalysisConfig struct {
	Policy       string
	Timeout      time.Duration
	MaxParallel  int
	GeminiAPIKey string
	GeminiModel  string
}

type PhotoConfig struct {
	MaxDimension int
	MaxBytes     int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ReportConfig struct {
	Dir      string
	S3Bucket string
	S3Prefix string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Demo        DemoConfig
	Inspection  InspectionConfig
	Analysis    AnalysisConfig
	Photo       PhotoConfig
	Redis       RedisConfig
	Report      ReportConfig
}

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	v.SetDefault("DEMO_ENABLED", true)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
			AccessTTL:    v.GetDuration("JWT_ACCESS_TTL"),
		},
		Demo: DemoConfig{
			Enabled:  v.GetBool("DEMO_ENABLED"),
			WorkerID: v.GetString("DEMO_WORKER_ID"),
		},
		Inspection: InspectionConfig{
			ChecklistPath:    v.GetString("CHECKLIST_PATH"),
			CommentMinLength: v.GetInt("COMMENT_MIN_LENGTH"),
			CommentMaxLength: v.GetInt("COMMENT_MAX_LENGTH"),
			SessionStore:     v.GetString("SESSION_STORE"),
			SessionTTL:       v.GetDuration("SESSION_TTL"),
		},
		Analysis: AnalysisConfig{
			Policy:       v.GetString("ANALYSIS_POLICY"),
			Timeout:      v.GetDuration("ANALYSIS_TIMEOUT"),
			MaxParallel:  v.GetInt("ANALYSIS_MAX_PARALLEL"),
			GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
			GeminiModel:  v.GetString("GEMINI_MODEL"),
		},
		Photo: PhotoConfig{
			MaxDimension: v.GetInt("PHOTO_MAX_DIMENSION"),
			MaxBytes:     v.GetInt("PHOTO_MAX_BYTES"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Report: ReportConfig{
			Dir:      v.GetString("REPORT_DIR"),
			S3Bucket: v.GetString("REPORT_S3_BUCKET"),
			S3Prefix: v.GetString("REPORT_S3_PREFIX"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimRight(strings.TrimSpace(part), "/"); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7086
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Auth.AccessTTL <= 0 {
		cfg.Auth.AccessTTL = 12 * time.Hour
	}
	if cfg.Demo.WorkerID == "" {
		cfg.Demo.WorkerID = "000"
	}
	if cfg.Inspection.CommentMinLength <= 0 {
		cfg.Inspection.CommentMinLength = 30
	}
	if cfg.Inspection.CommentMaxLength <= 0 {
		cfg.Inspection.CommentMaxLength = 150
	}
	if cfg.Inspection.SessionStore == "" {
		cfg.Inspection.SessionStore = SessionStoreMemory
	}
	if cfg.Inspection.SessionTTL <= 0 {
		cfg.Inspection.SessionTTL = 30 * time.Minute
	}
	if cfg.Analysis.Policy == "" {
		cfg.Analysis.Policy = "first"
	}
	if cfg.Analysis.Timeout <= 0 {
		cfg.Analysis.Timeout = 60 * time.Second
	}
	if cfg.Analysis.MaxParallel <= 0 {
		cfg.Analysis.MaxParallel = 4
	}
	if cfg.Analysis.GeminiModel == "" {
		cfg.Analysis.GeminiModel = "gemini-2.5-flash"
	}
	if cfg.Photo.MaxDimension <= 0 {
		cfg.Photo.MaxDimension = 1280
	}
	if cfg.Photo.MaxBytes <= 0 {
		cfg.Photo.MaxBytes = 10 << 20
	}
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "./reports"
	}
	if cfg.Report.S3Prefix == "" {
		cfg.Report.S3Prefix = "reports/"
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Inspection.CommentMinLength > cfg.Inspection.CommentMaxLength {
		return fmt.Errorf("COMMENT_MIN_LENGTH (%d) exceeds COMMENT_MAX_LENGTH (%d)",
			cfg.Inspection.CommentMinLength, cfg.Inspection.CommentMaxLength)
	}
	switch cfg.Inspection.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, cfg.Inspection.SessionStore)
	}
	return nil
}
