package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// WithEnv reads the environment into the config. Variables that are unset
// keep their current value. The full list is printed by Usage.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithDotEnv loads KEY=VALUE files into the process environment before
// WithEnv runs. Missing files are ignored; variables already set win.
func WithDotEnv(paths ...string) Option {
	return func(c *ServerConfig) error {
		if len(paths) == 0 {
			paths = []string{".env"}
		}
		for _, p := range paths {
			if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", p, err)
			}
		}
		return nil
	}
}

// Usage writes the supported environment variables to w
func Usage(w io.Writer) {
	cfg := defaults()
	cleanenv.FUsage(w, &cfg, nil)()
}
