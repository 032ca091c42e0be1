package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/km-arc/go-ioc/framework/container"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	Container ContainerConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

type AppConfig struct {
	Name            string
	Env             string // local | production | testing
	Debug           bool
	Port            string
	ShutdownTimeout time.Duration
}

// ContainerConfig holds the raw container settings; Options and BuildOptions
// turn them into container options.
type ContainerConfig struct {
	DefaultLifetime string // scoped | singleton | transient | none
	Duplicates      string // override | ignore | throw
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // json | console
}

type MetricsConfig struct {
	Path string // empty disables the endpoint
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	appEnv := Get("APP_ENV", "local")
	defaultFormat := "console"
	if appEnv == "production" {
		defaultFormat = "json"
	}

	return &Config{
		App: AppConfig{
			Name:            Get("APP_NAME", "GoIoC"),
			Env:             appEnv,
			Debug:           GetBool("APP_DEBUG", true),
			Port:            Get("APP_PORT", "8000"),
			ShutdownTimeout: time.Duration(GetInt("APP_SHUTDOWN_TIMEOUT", 10)) * time.Second,
		},
		Container: ContainerConfig{
			DefaultLifetime: Get("CONTAINER_DEFAULT_LIFETIME", "scoped"),
			Duplicates:      Get("CONTAINER_DUPLICATES", "override"),
		},
		Log: LogConfig{
			Level:  Get("LOG_LEVEL", "info"),
			Format: Get("LOG_FORMAT", defaultFormat),
		},
		Metrics: MetricsConfig{
			Path: Get("METRICS_PATH", "/metrics"),
		},
	}
}

// Options returns the container options described by the configuration.
func (c ContainerConfig) Options() ([]container.Option, error) {
	s, err := container.ParseDuplicateStrategy(c.Duplicates)
	if err != nil {
		return nil, fmt.Errorf("config: CONTAINER_DUPLICATES: %w", err)
	}
	return []container.Option{container.WithDuplicateStrategy(s)}, nil
}

// BuildOptions returns the resolver options described by the configuration.
// "none" disables auto-registration.
func (c ContainerConfig) BuildOptions() ([]container.BuildOption, error) {
	if strings.EqualFold(strings.TrimSpace(c.DefaultLifetime), "none") {
		return []container.BuildOption{container.WithoutDefaultLifetime()}, nil
	}
	l, err := container.ParseLifetime(c.DefaultLifetime)
	if err != nil {
		return nil, fmt.Errorf("config: CONTAINER_DEFAULT_LIFETIME: %w", err)
	}
	return []container.BuildOption{container.WithDefaultLifetime(l)}, nil
}

// Get returns the value of key, or def when it is unset or empty.
func Get(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// GetInt returns key parsed as an int. Unset or malformed values yield def.
func GetInt(key string, def int) int {
	i, err := strconv.Atoi(Get(key, ""))
	if err != nil {
		return def
	}
	return i
}

// GetBool returns key parsed by strconv.ParseBool. Unset or malformed
// values yield def.
func GetBool(key string, def bool) bool {
	b, err := strconv.ParseBool(Get(key, ""))
	if err != nil {
		return def
	}
	return b
}
