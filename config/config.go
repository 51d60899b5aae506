package config

import (
	"os"
	"strings"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"pollen"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,PUT"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Graceful shutdown deadline
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"pollen"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Pool settings
	DatabaseMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration folder on disk; empty uses the migrations embedded in the binary
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:""`
	// 0 migrates to the latest version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce   int `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Auth Enabled - when false, the X-User-ID header is trusted and admin routes are open
	AuthEnabled bool `env:"AUTH_ENABLED" env-default:"false"`
	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:""`

	// Kafka brokers (comma-separated). Empty disables channel events.
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:""`
	// Kafka topic for channel lifecycle events
	KafkaChannelTopic string `env:"KAFKA_CHANNEL_TOPIC" env-default:"channel-events"`

	// Redis address for the per-page sync lock. Empty disables locking.
	RedisAddr     string        `env:"REDIS_ADDR" env-default:""`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	PageLockTTL   time.Duration `env:"PAGE_LOCK_TTL" env-default:"30s"`
	PageLockWait  time.Duration `env:"PAGE_LOCK_WAIT" env-default:"10s"`

	// Enable OTLP tracing export
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool          `env:"OTLP_INSECURE" env-default:"true"`
	OTLPTimeout  time.Duration `env:"OTLP_TIMEOUT" env-default:"10s"`

	// Facebook Graph API base, including the version segment
	GraphAPIBaseURL  string        `env:"GRAPH_API_BASE_URL" env-default:"https://graph.facebook.com/v23.0"`
	GraphHTTPTimeout time.Duration `env:"GRAPH_HTTP_TIMEOUT" env-default:"30s"`
	// Used for the error redirect when integration settings cannot be loaded
	PublicURL     string `env:"PUBLIC_URL" env-default:"http://localhost:3000"`
	CallbackPath  string `env:"CALLBACK_PATH" env-default:"/api/v1/facebook/auth/callback"`
	FrontendPath  string `env:"FRONTEND_PATH" env-default:"/admin/settings/integrations"`
	ErrorPagePath string `env:"ERROR_PAGE_PATH" env-default:"/admin/settings/integrations/error"`
	// abort or continue
	SyncPageFailurePolicy string   `env:"SYNC_PAGE_FAILURE_POLICY" env-default:"abort"`
	FacebookOAuthScopes   []string `env:"FACEBOOK_OAUTH_SCOPES" env-default:"pages_show_list,pages_messaging,pages_manage_metadata"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "failed to load env file %s", f)
		}
	}

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read config from environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.SyncPageFailurePolicy) {
	case "abort", "continue":
	default:
		return errors.Errorf("SYNC_PAGE_FAILURE_POLICY must be abort or continue, got %q", c.SyncPageFailurePolicy)
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is true")
	}
	if c.DatabaseMigrationVersion < 0 {
		return errors.Errorf("DB_MIGRATION_VERSION must not be negative, got %d", c.DatabaseMigrationVersion)
	}
	if c.GraphAPIBaseURL == "" {
		return errors.New("GRAPH_API_BASE_URL is required")
	}
	return nil
}
