package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configs that check their own invariants after
// the environment has been parsed.
type Validator interface {
	Validate() error
}

// Load parses environment variables into cfg using its `env` tags. When cfg
// implements Validator its Validate method runs after parsing.
//
//	type Config struct {
//	    Port  int      `env:"HTTP_PORT" envDefault:"8080"`
//	    Hosts []string `env:"ES_HOSTS" envSeparator:","`
//	}
func Load(cfg any) error {
	return LoadWithPrefix("", cfg)
}

// LoadWithPrefix is Load with every variable name prefixed, e.g. "TEST_".
func LoadWithPrefix(prefix string, cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
