// Package config loads the runtime settings of the MindMap server from the
// environment (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds every setting the server needs. Credentials have no defaults.
type Config struct {
	Port        string `env:"PORT,default=3002"`
	Environment string `env:"APP_ENV,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	Database DatabaseConfig
	Mail     MailConfig

	AppURL          string `env:"APP_URL,required"`
	FrontendURL     string `env:"FRONTEND_URL,required"`
	ExtraOrigins    string `env:"ALLOWED_ORIGINS"`
	WordServiceURL  string `env:"WORD_SERVICE_URL,required"`
	StaticDir       string `env:"STATIC_DIR,default=./public"`
	ConfirmRedirect string `env:"CONFIRM_REDIRECT,default=/login.html"`

	JWTSecret    string        `env:"JWT_SECRET,required"`
	JWTTTL       time.Duration `env:"JWT_TTL,default=168h"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`
	CookieSecure bool          `env:"COOKIE_SECURE,default=true"`

	ProbeInterval time.Duration `env:"PROBE_INTERVAL,default=30s"`
	AuthRateLimit float64       `env:"AUTH_RATE_LIMIT,default=5"`
	AuthRateBurst int           `env:"AUTH_RATE_BURST,default=10"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST,required"`
	Port     int    `env:"DB_PORT,default=3306"`
	User     string `env:"DB_USER,required"`
	Password string `env:"DB_PASSWORD,required"`
	Name     string `env:"DB_NAME,required"`
	PoolSize int    `env:"DB_POOL_SIZE,default=10"`
}

type MailConfig struct {
	Host     string `env:"MAIL_HOST,default=smtp.gmail.com"`
	Port     int    `env:"MAIL_PORT,default=587"`
	Username string `env:"EMAIL,required"`
	Password string `env:"EMAIL_PASSWORD,required"`
	From     string `env:"MAIL_FROM"`
}

// LoadDotEnv seeds the process environment from a .env file when one exists.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	return nil
}

// Load decodes the environment into a Config and checks the values that
// envdecode cannot validate on its own.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envdecode.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}

	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.PoolSize <= 0 {
		return fmt.Errorf("DB_POOL_SIZE must be positive, got %d", c.Database.PoolSize)
	}

	if c.ProbeInterval <= 0 {
		return fmt.Errorf("PROBE_INTERVAL must be positive, got %s", c.ProbeInterval)
	}

	if c.AuthRateLimit <= 0 || c.AuthRateBurst <= 0 {
		return errors.New("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DSN returns the data source name of the application database.
func (d DatabaseConfig) DSN() string {
	return d.mysqlConfig(d.Name).FormatDSN()
}

// AdminDSN returns a data source name with no database selected, used to
// create the application database before the pool is opened.
func (d DatabaseConfig) AdminDSN() string {
	return d.mysqlConfig("").FormatDSN()
}

func (d DatabaseConfig) mysqlConfig(dbName string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Collation = "utf8mb4_unicode_ci"

	return cfg
}
