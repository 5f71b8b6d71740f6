// Package config loads process configuration from defaults, YAML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is the optional YAML file read by Load
const DefaultFile = "config.yaml"

// envSections are the top-level keys that environment variables may override.
var envSections = []string{"app", "log", "fetch"}

// Load reads configuration with priority, highest first:
//  1. environment variables (FETCH_RETRIES -> fetch.retries)
//  2. config.<env>.yaml, then config.yaml (both optional)
//  3. defaults
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadOptionalFile(k, DefaultFile); err != nil {
		return nil, err
	}
	if appEnv := k.String("app.env"); appEnv != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", appEnv)); err != nil {
			return nil, err
		}
	}

	return finish(k)
}

// LoadFromBytes reads configuration from a YAML document layered over defaults
// and under environment variables.
func LoadFromBytes(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider(".", env.Opt{TransformFunc: envKey}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey maps SECTION_FIELD variables to section.field keys and drops
// variables outside the known sections.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(key)
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return "", nil
	}
	for _, s := range envSections {
		if section == s {
			return section + "." + strings.ReplaceAll(rest, "_", "."), value
		}
	}
	return "", nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	err := k.Load(file.Provider(path), yaml.Parser())
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name": "resilientfetch",
		"app.env":  EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"fetch.retries":            12,
		"fetch.pause":              "2s",
		"fetch.timeout":            "30s",
		"fetch.logpayloads":        false,
		"fetch.maxpayloadlogbytes": 1024,
		"fetch.traceidheader":      "X-Request-ID",
		"fetch.w3ctrace":           false,
	}
	return k.Load(confmap.Provider(defaults, "."), nil)
}
