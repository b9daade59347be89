package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"America/New_York" validate:"required"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty" validate:"oneof=pretty json"`

	IDOBaseURL  string        `envconfig:"IDO_BASE_URL" validate:"required,url"`
	IDOTenant   string        `envconfig:"IDO_TENANT" validate:"required"`
	IDOUsername string        `envconfig:"IDO_USERNAME" validate:"required"`
	IDOPassword string        `envconfig:"IDO_PASSWORD" validate:"required"`
	IDOTimeout  time.Duration `envconfig:"IDO_TIMEOUT" default:"2m" validate:"gt=0"`

	IDORecordCapItems   int `envconfig:"IDO_RECORD_CAP_ITEMS" default:"15000" validate:"gt=0"`
	IDORecordCapCoItems int `envconfig:"IDO_RECORD_CAP_COITEMS" default:"20000" validate:"gt=0"`
	IDORecordCapARTrans int `envconfig:"IDO_RECORD_CAP_ARTRANS" default:"20000" validate:"gt=0"`
	IDORecordCapLedger  int `envconfig:"IDO_RECORD_CAP_LEDGER" default:"20000" validate:"gt=0"`

	PolicyFile string `envconfig:"POLICY_FILE"`

	OutputJSON   string `envconfig:"OUTPUT_JSON" default:"dashboard-data.json" validate:"required"`
	OutputHTML   string `envconfig:"OUTPUT_HTML" default:"index.html" validate:"required"`
	OutputPDF    string `envconfig:"OUTPUT_PDF"`
	OutputCSVDir string `envconfig:"OUTPUT_CSV_DIR"`
	TemplatePath string `envconfig:"TEMPLATE_PATH"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000" validate:"omitempty,url"`

	RedisAddr            string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379" validate:"required"`
	SnapshotCacheEnabled bool          `envconfig:"SNAPSHOT_CACHE_ENABLED" default:"false"`
	SnapshotCacheTTL     time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"168h"`

	DashboardCron    string        `envconfig:"DASHBOARD_CRON" default:"0 6 * * 1-5"`
	DashboardTimeout time.Duration `envconfig:"DASHBOARD_TIMEOUT" default:"15m"`

	OpsAddr           string        `envconfig:"OPS_ADDR" default:":9090"`
	OpsReadTimeout    time.Duration `envconfig:"OPS_READ_TIMEOUT" default:"15s"`
	OpsWriteTimeout   time.Duration `envconfig:"OPS_WRITE_TIMEOUT" default:"15s"`
	OpsRequestTimeout time.Duration `envconfig:"OPS_REQUEST_TIMEOUT" default:"30s"`

	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL" validate:"omitempty,url"`

	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Prefix       string `envconfig:"S3_PREFIX"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
}

var validate = validator.New()

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory is loaded first when present; variables already set
// in the environment win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("config: APP_TIMEZONE: %w", err)
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return errors.New("config: S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}
	return nil
}

// Location resolves AppTimezone. Validate has already vetted the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// S3Enabled reports whether artefacts should be uploaded.
func (c *Config) S3Enabled() bool {
	return c != nil && strings.TrimSpace(c.S3Bucket) != ""
}

// PDFEnabled reports whether a PDF rendition is requested.
func (c *Config) PDFEnabled() bool {
	return c != nil && c.OutputPDF != "" && c.GotenbergURL != ""
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
