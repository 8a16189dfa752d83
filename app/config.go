package app

import (
	"log/slog"
	"strings"

	"github.com/dmitrymomot/fluxcore/core/config"
	"github.com/dmitrymomot/fluxcore/core/logger"
)

// Config is the environment configuration of a Core.
type Config struct {
	Name       string `env:"APP_NAME" envDefault:"fluxcore"`
	Env        string `env:"APP_ENV" envDefault:"development"`
	Debug      bool   `env:"APP_DEBUG" envDefault:"false"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT"`
	ConfigFile string `env:"APP_CONFIG_FILE"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoggerOptions returns the logger options derived from cfg: the preset for
// cfg.Env, cfg.LogLevel, an explicit cfg.LogFormat ("json" or "text"),
// source locations in debug mode and the action context extractors.
func LoggerOptions(cfg Config) []logger.Option {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Name, cfg.Env),
		logger.WithLevelString(cfg.LogLevel),
		logger.WithHandlerOptions(&slog.HandlerOptions{AddSource: cfg.Debug}),
		logger.WithContextExtractors(ContextExtractors()...),
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		opts = append(opts, logger.WithJSONFormatter())
	case "text":
		opts = append(opts, logger.WithTextFormatter())
	}

	return opts
}

// NewFromConfig creates a Core from cfg. The logger is built from
// LoggerOptions(cfg), and cfg.ConfigFile, when set, is merged into the core
// config. Options are applied after the ones derived from cfg.
func NewFromConfig(cfg Config, opts ...Option) (*Core, error) {
	log := logger.New(LoggerOptions(cfg)...)

	base := []Option{
		WithLogger(log),
		WithDebug(cfg.Debug),
	}
	c := New(append(base, opts...)...)

	if cfg.ConfigFile != "" {
		if err := c.LoadConfigFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	return c, nil
}
