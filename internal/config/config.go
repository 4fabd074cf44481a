// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	JWTSecretKey string
	JWTIssuer    string

	DBDriver       string
	DatabaseURL    string
	DBMaxOpenConns int
	TxMaxAttempts  int
	TxRetryDelay   time.Duration

	ChatDefaultPageSize  int
	ChatMaxPageSize      int
	ChatMaxContentLength int
	RequestTimeout       time.Duration

	WSEventTimeout   time.Duration
	WSSendBuffer     int
	WSEventRate      float64
	WSEventBurst     int
	WSAllowedOrigins []string

	APIRateRPS         float64
	APIRateBurst       int
	CORSAllowedOrigins []string
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from environment variables or .env file.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	p := &parser{}
	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		JWTSecretKey: getEnv("JWT_SECRET_KEY", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", "parley"),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBMaxOpenConns: p.int("DB_MAX_OPEN_CONNS", 10),
		TxMaxAttempts:  p.int("TX_MAX_ATTEMPTS", 5),
		TxRetryDelay:   p.duration("TX_RETRY_DELAY", 10*time.Millisecond),

		ChatDefaultPageSize:  p.int("CHAT_DEFAULT_PAGE_SIZE", 50),
		ChatMaxPageSize:      p.int("CHAT_MAX_PAGE_SIZE", 100),
		ChatMaxContentLength: p.int("CHAT_MAX_CONTENT_LENGTH", 1000),
		RequestTimeout:       p.duration("REQUEST_TIMEOUT", 15*time.Second),

		WSEventTimeout:   p.duration("WS_EVENT_TIMEOUT", 10*time.Second),
		WSSendBuffer:     p.int("WS_SEND_BUFFER", 256),
		WSEventRate:      p.float("WS_EVENT_RATE", 10),
		WSEventBurst:     p.int("WS_EVENT_BURST", 20),
		WSAllowedOrigins: getEnvAsList("WS_ALLOWED_ORIGINS"),

		APIRateRPS:         p.float("API_RATE_RPS", 20),
		APIRateBurst:       p.int("API_RATE_BURST", 40),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.IsProduction() {
		missing := []string{}
		if c.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if c.DBDriver == "postgres" && c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required production environment variables: %v", missing)
		}
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.TxMaxAttempts < 1 {
		return errors.New("TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.WSSendBuffer < 1 || c.WSEventBurst < 1 || c.APIRateBurst < 1 {
		return errors.New("buffer and burst sizes must be positive")
	}
	return nil
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) int(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strValue)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: not an integer: %q", key, strValue))
		return defaultValue
	}
	return v
}

func (p *parser) float(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: not a number: %q", key, strValue))
		return defaultValue
	}
	return v
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(strValue)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: not a duration: %q", key, strValue))
		return defaultValue
	}
	return v
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
