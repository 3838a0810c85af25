// Package config loads and validates groundwork's YAML configuration, with
// BLAKE3 checksum locking for tamper detection.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file, applies defaults, expands
// ${ENV_VAR} references, verifies the checksum lock when present, and
// validates the result.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: check the path or run with --config", absPath)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}

	expandEnv(cfg)

	if err := VerifyLock(absPath); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// expandEnv substitutes ${VAR} references in string fields that commonly
// carry secrets or host-specific paths.
func expandEnv(cfg *Config) {
	expand := func(s string) string {
		return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
			name := envVarPattern.FindStringSubmatch(m)[1]
			if v, ok := os.LookupEnv(name); ok {
				return v
			}
			return m
		})
	}

	cfg.API.Auth.APIKey = expand(cfg.API.Auth.APIKey)
	cfg.Workspaces.Dir = expand(cfg.Workspaces.Dir)
	cfg.State.Path = expand(cfg.State.Path)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		return fmt.Errorf("service.name is required")
	}
	if strings.TrimSpace(cfg.Workspaces.Dir) == "" {
		return fmt.Errorf("workspaces.dir is required")
	}
	if strings.TrimSpace(cfg.State.Path) == "" {
		return fmt.Errorf("state.path is required")
	}
	if cfg.API.Enabled && strings.TrimSpace(cfg.API.Listen) == "" {
		return fmt.Errorf("api.listen is required when api.enabled is true")
	}
	if strings.TrimSpace(cfg.Tooling.Package) == "" {
		return fmt.Errorf("tooling.package is required")
	}

	for name, list := range map[string][]string{
		"commands.git":    cfg.Commands.Git,
		"commands.python": cfg.Commands.Python,
		"commands.elan":   cfg.Commands.Elan,
		"commands.lake":   cfg.Commands.Lake,
	} {
		if len(list) == 0 {
			return fmt.Errorf("%s must list at least one candidate", name)
		}
		for _, c := range list {
			if strings.TrimSpace(c) == "" {
				return fmt.Errorf("%s contains an empty candidate", name)
			}
		}
	}
	return nil
}
