package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Database holds the storage settings. cmd/migrate loads it on its own.
type Database struct {
	DBAdapter     string `envconfig:"DB_ADAPTER" default:"postgres"`
	SQLiteFile    string `envconfig:"SQLITE_FILE" default:"./data/quotes.db"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"./migrations"`
	// PostgreSQL connection settings
	PostgresDSN      string `envconfig:"POSTGRES_DSN"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"quotes"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"quotes"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

type Config struct {
	Env       string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8000"`
	Origin    string `envconfig:"ORIGIN" default:"*"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	Database

	// Token secrets have no default and must differ from each other.
	TokenIssuer        string        `envconfig:"TOKEN_ISSUER" default:"quotes-api"`
	AccessTokenSecret  string        `envconfig:"ACCESS_TOKEN_SECRET" required:"true"`
	AccessTokenTTL     time.Duration `envconfig:"ACCESS_TOKEN_EXPIRATION" default:"1h"`
	RefreshTokenSecret string        `envconfig:"REFRESH_TOKEN_SECRET" required:"true"`
	RefreshTokenTTL    time.Duration `envconfig:"REFRESH_TOKEN_EXPIRATION" default:"168h"`
	ResetTokenSecret   string        `envconfig:"RESET_TOKEN_SECRET" required:"true"`
	ResetTokenTTL      time.Duration `envconfig:"RESET_TOKEN_EXPIRATION" default:"15m"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`

	RateLimitPerMinute     int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"100"`
	AuthRateLimitPerMinute int `envconfig:"AUTH_RATE_LIMIT_PER_MINUTE" default:"5"`

	MailDriver   string `envconfig:"MAIL_DRIVER" default:"log"`
	SMTPHost     string `envconfig:"SMTP_HOST" default:"127.0.0.1"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"no-reply@quotes.local"`
	ResetURL     string `envconfig:"RESET_URL"`
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Database) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}
	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)
	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}
	return dsn, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// New reads the configuration from the environment and validates it.
func New() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NewDatabase reads only the storage settings.
func NewDatabase() (*Database, error) {
	var d Database
	if err := envconfig.Process("", &d); err != nil {
		return nil, err
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Database) validate() error {
	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.Port)
	}
	if err := c.Database.validate(); err != nil {
		return err
	}

	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" || c.ResetTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET, REFRESH_TOKEN_SECRET and RESET_TOKEN_SECRET are required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret ||
		c.AccessTokenSecret == c.ResetTokenSecret ||
		c.RefreshTokenSecret == c.ResetTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET, REFRESH_TOKEN_SECRET and RESET_TOKEN_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return errors.New("token expirations must be positive")
	}

	switch c.MailDriver {
	case "log", "smtp":
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER: %s (supported: log, smtp)", c.MailDriver)
	}

	if c.RateLimitPerMinute <= 0 || c.AuthRateLimitPerMinute <= 0 {
		return errors.New("rate limits must be positive")
	}
	return nil
}
