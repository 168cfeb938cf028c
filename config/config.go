// Package config assembles the console's runtime configuration.
//
// Values come from command-line flags, then HAROLD_* environment variables,
// then defaults; the first source to set a field wins. With nothing set the
// console runs the built-in engine in-process with the "You: " prompt.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zylisp/harold/protocol"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "HAROLD_"

// DefaultPrompt is shown before any SET_USER_PROMPT arrives.
const DefaultPrompt = "You: "

// Log holds logging settings.
type Log struct {
	// File is the log file path; empty disables logging.
	File string `env:"FILE"`
	// Level is a zerolog level name.
	Level string `env:"LEVEL"`
}

// Config is the top-level configuration.
type Config struct {
	// Engine is the command line of an external engine process. Empty runs
	// the built-in engine in-process.
	Engine string `env:"ENGINE"`
	// Codec is the wire format spoken with an external engine.
	Codec string `env:"CODEC"`
	// Prompt is the initial user prompt.
	Prompt string `env:"PROMPT"`
	// HistoryFile keeps readline history between runs when set.
	HistoryFile string `env:"HISTORY_FILE"`

	Log Log `envPrefix:"LOG_"`
}

// Defaults returns the configuration used when no source sets a field.
func Defaults() *Config {
	return &Config{
		Codec:  protocol.FormatJSON,
		Prompt: DefaultPrompt,
		Log: Log{
			Level: zerolog.InfoLevel.String(),
		},
	}
}

// Load merges flags, the process environment and defaults.
func Load(flags *Config) (*Config, error) {
	return load(flags, environ())
}

func load(flags *Config, environment map[string]string) (*Config, error) {
	cfg, err := newConfigBuilder().
		withFlags(flags).
		withEnv(environment).
		withDefaults().
		build()
	if err != nil {
		return nil, fmt.Errorf("error building config: %w", err)
	}
	return cfg, nil
}

// EngineArgs splits Engine into an argv. Arguments are separated by
// whitespace; quoting is not interpreted.
func (c *Config) EngineArgs() []string {
	return strings.Fields(c.Engine)
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}
