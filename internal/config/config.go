package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server  ServerConfig
	DB      DatabaseConfig
	Weather WeatherConfig
	Video   VideoConfig
	Events  EventsConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int `validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration
	AllowOrigins    []string
}

type DatabaseConfig struct {
	Driver          string `validate:"oneof=postgres sqlite"`
	Host            string `validate:"required_if=Driver postgres"`
	Port            int    `validate:"min=1,max=65535"`
	Name            string `validate:"required_if=Driver postgres"`
	User            string `validate:"required_if=Driver postgres"`
	Password        string `validate:"required_if=Driver postgres"`
	SSLMode         string
	Path            string `validate:"required_if=Driver sqlite"`
	MaxOpenConns    int    `validate:"min=1"`
	MaxIdleConns    int    `validate:"min=0"`
	ConnMaxLifetime time.Duration
}

type WeatherConfig struct {
	APIKey  string `validate:"required"`
	BaseURL string `validate:"url"`
	Timeout time.Duration
	RPS     float64 `validate:"gt=0"`
}

type VideoConfig struct {
	APIKey  string `validate:"required"`
	BaseURL string `validate:"url"`
	Timeout time.Duration
}

// EventsConfig controls publication of new observations; no brokers disables it.
type EventsConfig struct {
	Brokers    []string
	Topic      string
	Workers    int `validate:"min=1"`
	BufferSize int `validate:"min=1"`
}

type LoggingConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0
}

// DSN builds the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func Load() (*Config, error) {
	env := &envParser{}
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            env.getEnvInt("SERVER_PORT", 8000),
			ShutdownTimeout: env.getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowOrigins:    getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		DB: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:            os.Getenv("DB_HOST"),
			Port:            env.getEnvInt("DB_PORT", 5432),
			Name:            os.Getenv("DB_NAME"),
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			Path:            getEnv("DB_PATH", "./data/weather.db"),
			MaxOpenConns:    env.getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    env.getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Weather: WeatherConfig{
			APIKey:  os.Getenv("WEATHER_API_KEY"),
			BaseURL: getEnv("WEATHER_API_URL", "https://api.weatherapi.com/v1"),
			Timeout: env.getEnvDuration("WEATHER_API_TIMEOUT", 10*time.Second),
			RPS:     env.getEnvFloat("WEATHER_API_RPS", 5),
		},
		Video: VideoConfig{
			APIKey:  os.Getenv("YT_API_KEY"),
			BaseURL: getEnv("YT_API_URL", "https://www.googleapis.com/youtube/v3"),
			Timeout: env.getEnvDuration("YT_API_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			Brokers:    getEnvList("EVENTS_KAFKA_BROKERS", nil),
			Topic:      getEnv("EVENTS_KAFKA_TOPIC", "weather-observations"),
			Workers:    env.getEnvInt("EVENTS_WORKERS", 2),
			BufferSize: env.getEnvInt("EVENTS_BUFFER", 64),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New()

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return describe(c, verrs[0])
		}
		return err
	}

	if c.Weather.Timeout <= 0 || c.Video.Timeout <= 0 {
		return fmt.Errorf("upstream timeouts must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %s", c.Server.ShutdownTimeout)
	}
	if c.Events.Enabled() && c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_KAFKA_TOPIC is required when EVENTS_KAFKA_BROKERS is set")
	}

	return nil
}

// describe turns a validation failure into a message naming the environment variable.
func describe(c *Config, fe validator.FieldError) error {
	envNames := map[string]string{
		"Config.Server.Port":       "SERVER_PORT",
		"Config.DB.Driver":         "DB_DRIVER",
		"Config.DB.Host":           "DB_HOST",
		"Config.DB.Port":           "DB_PORT",
		"Config.DB.Name":           "DB_NAME",
		"Config.DB.User":           "DB_USER",
		"Config.DB.Password":       "DB_PASSWORD",
		"Config.DB.Path":           "DB_PATH",
		"Config.DB.MaxOpenConns":   "DB_MAX_OPEN_CONNS",
		"Config.DB.MaxIdleConns":   "DB_MAX_IDLE_CONNS",
		"Config.Weather.APIKey":    "WEATHER_API_KEY",
		"Config.Weather.BaseURL":   "WEATHER_API_URL",
		"Config.Weather.RPS":       "WEATHER_API_RPS",
		"Config.Video.APIKey":      "YT_API_KEY",
		"Config.Video.BaseURL":     "YT_API_URL",
		"Config.Events.Workers":    "EVENTS_WORKERS",
		"Config.Events.BufferSize": "EVENTS_BUFFER",
		"Config.Logging.Level":     "LOG_LEVEL",
	}
	name, ok := envNames[fe.Namespace()]
	if !ok {
		name = fe.Namespace()
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", name)
	case "required_if":
		return fmt.Errorf("%s is required when DB_DRIVER=%s", name, c.DB.Driver)
	default:
		return fmt.Errorf("invalid %s: %v", name, fe.Value())
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envParser reads typed variables and remembers every malformed value, so a
// typo is reported instead of replaced by the default.
type envParser struct {
	errs []error
}

func (p *envParser) fail(key, val string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, val, err))
}

func (p *envParser) getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return i
}

func (p *envParser) getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return f
}

func (p *envParser) getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
