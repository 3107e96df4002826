package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port      string `env:"PORT" env-default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	JWTSecret string `env:"JWT_SECRET"`
	DBURL     string `env:"DB_URL"`
	// TokenTTL bounds tokens issued by /auth/token.
	TokenTTL time.Duration `env:"TOKEN_TTL" env-default:"24h"`

	ReadTimeoutSecs    int `env:"SERVER_READ_TIMEOUT" env-default:"15"`
	WriteTimeoutSecs   int `env:"SERVER_WRITE_TIMEOUT" env-default:"15"`
	IdleTimeoutSecs    int `env:"SERVER_IDLE_TIMEOUT" env-default:"60"`
	RequestTimeoutSecs int `env:"SERVER_REQUEST_TIMEOUT" env-default:"10"`

	DBMaxConns        int `env:"DB_MAX_CONNS" env-default:"20"`
	DBMinConns        int `env:"DB_MIN_CONNS" env-default:"2"`
	DBMaxIdleSecs     int `env:"DB_MAX_CONN_IDLE_SECS" env-default:"300"`
	DBMaxLifeSecs     int `env:"DB_MAX_CONN_LIFETIME_SECS" env-default:"3600"`
	DBConnTimeoutSecs int `env:"DB_CONN_TIMEOUT_SECS" env-default:"10"`
	DBStatementCache  int `env:"DB_STATEMENT_CACHE_CAPACITY" env-default:"256"`

	// NATSURL enables domain event publishing when set.
	NATSURL           string        `env:"NATS_URL"`
	NATSMaxReconnects int           `env:"NATS_MAX_RECONNECTS" env-default:"5"`
	NATSReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" env-default:"2s"`

	RateLimitEnabled bool    `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	RateLimitRPS     float64 `env:"RATE_LIMIT_RPS" env-default:"20"`
	RateLimitBurst   int     `env:"RATE_LIMIT_BURST" env-default:"40"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
	PageLimit          int      `env:"PAGE_LIMIT" env-default:"20"`
}

// Load reads configuration from environment variables, applying defaults and
// validation. When ENV_FILE is set the file is loaded first; variables already
// present in the environment win.
func Load() (Config, error) {
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load ENV_FILE %s: %w", path, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	if strings.TrimSpace(c.DBURL) == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("SERVER_REQUEST_TIMEOUT must be positive")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if c.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when RATE_LIMIT_ENABLED")
	}
	if c.PageLimit <= 0 || c.PageLimit > 100 {
		return fmt.Errorf("PAGE_LIMIT must be within 1..100")
	}
	return nil
}
