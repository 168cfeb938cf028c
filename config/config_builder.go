package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

type configBuilder struct {
	configs []*Config
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		configs: make([]*Config, 0, 3),
	}
}

// build merges the collected configs in order. mergo only fills zero
// fields, so earlier sources take precedence.
func (b *configBuilder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occured during building config: %w", b.err)
	}

	config := new(Config)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	return config, config.validate()
}

func (b *configBuilder) withFlags(flags *Config) *configBuilder {
	if flags != nil {
		b.configs = append(b.configs, flags)
	}
	return b
}

func (b *configBuilder) withEnv(environment map[string]string) *configBuilder {
	envCfg := &Config{}
	err := env.ParseWithOptions(envCfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environment,
	})
	if err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("error getting env configs: %w", err))
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withDefaults() *configBuilder {
	b.configs = append(b.configs, Defaults())
	return b
}
