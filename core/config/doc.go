// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/fluxcore/core/config"
//
//	type AppConfig struct {
//		Name  string `env:"APP_NAME" envDefault:"fluxcore"`
//		Debug bool   `env:"APP_DEBUG" envDefault:"false"`
//	}
//
//	func main() {
//		var cfg AppConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 AppConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 AppConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Reset drops the cache; tests use it after changing the environment.
//
// # Option Files
//
// LoadFile reads free-form application options from YAML, for values that do
// not fit environment variables such as per-module settings:
//
//	opts, err := config.LoadFile("app.yaml")
//	core.SetConfig(opts)
package config
