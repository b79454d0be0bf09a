// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads tool configuration for the exprkit CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/exprkit/pkg/errors"
)

// Config represents the complete exprkit tool configuration.
type Config struct {
	Log  LogConfig  `yaml:"log"`
	Eval EvalConfig `yaml:"eval"`
	JQ   JQConfig   `yaml:"jq"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	Format string `yaml:"format"`

	// Source adds file/line information to records.
	Source bool `yaml:"source"`
}

// EvalConfig configures expression evaluation.
type EvalConfig struct {
	// ParseCacheLimit bounds the compiled-expression cache (0 = unbounded).
	ParseCacheLimit int `yaml:"parse_cache_limit"`
}

// JQConfig configures the jq function binding.
type JQConfig struct {
	// Timeout bounds a single jq query execution.
	Timeout time.Duration `yaml:"timeout"`

	// MaxInputSize bounds the JSON-encoded input size in bytes.
	MaxInputSize int64 `yaml:"max_input_size"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Eval: EvalConfig{
			ParseCacheLimit: 0,
		},
		JQ: JQConfig{
			Timeout:      time.Second,
			MaxInputSize: 10 * 1024 * 1024,
		},
	}
}

// Load reads a YAML configuration file over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &errors.ValidationError{
			Field:      "config",
			Message:    fmt.Sprintf("invalid YAML in %s: %s", path, err),
			Suggestion: "check the file against the documented schema",
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return &errors.ValidationError{
			Field:      "log.format",
			Message:    fmt.Sprintf("unknown format %q", c.Log.Format),
			Suggestion: "use json or text",
		}
	}

	if c.Eval.ParseCacheLimit < 0 {
		return &errors.ValidationError{
			Field:   "eval.parse_cache_limit",
			Message: "must be zero or positive",
		}
	}

	if c.JQ.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "jq.timeout",
			Message: "must be zero or positive",
		}
	}
	if c.JQ.MaxInputSize < 0 {
		return &errors.ValidationError{
			Field:   "jq.max_input_size",
			Message: "must be zero or positive",
		}
	}
	return nil
}
