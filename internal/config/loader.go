package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, defaults and validates the configuration at
// configPath. A directory is accepted if it contains config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.SourcePath = absPath
	resolveRelativePaths(cfg, filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML config bytes and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return applyConfigDefaults(&cfg), nil
}

// DiscoverConfigPath finds a config file by checking standard locations.
// Priority order: $ANSIBLE_ACTIONS_CONFIG, ~/.config/ansible-actions, /etc/ansible-actions, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("ANSIBLE_ACTIONS_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "ansible-actions")
		if _, err := os.Stat(filepath.Join(userConfigDir, "config.yaml")); err == nil {
			return userConfigDir, nil
		}
	}
	systemConfigDir := "/etc/ansible-actions"
	if _, err := os.Stat(filepath.Join(systemConfigDir, "config.yaml")); err == nil {
		return systemConfigDir, nil
	}
	if _, err := os.Stat("./config.yaml"); err == nil {
		return "./config.yaml", nil
	}
	return "", fmt.Errorf("no config found (checked: $ANSIBLE_ACTIONS_CONFIG, ~/.config/ansible-actions, /etc/ansible-actions, ./config.yaml)")
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.Dispatch.PollInterval == 0 {
		cfg.Dispatch.PollInterval = defaults.Dispatch.PollInterval
	}
	if cfg.Dispatch.OnMissingConnector == "" {
		cfg.Dispatch.OnMissingConnector = defaults.Dispatch.OnMissingConnector
	}
	if cfg.Ansible.AdhocBin == "" {
		cfg.Ansible.AdhocBin = defaults.Ansible.AdhocBin
	}
	if cfg.Ansible.PlaybookBin == "" {
		cfg.Ansible.PlaybookBin = defaults.Ansible.PlaybookBin
	}
	if cfg.Ansible.MaxOutputBytes == 0 {
		cfg.Ansible.MaxOutputBytes = defaults.Ansible.MaxOutputBytes
	}
	if cfg.Ansible.TerminationGrace == 0 {
		cfg.Ansible.TerminationGrace = defaults.Ansible.TerminationGrace
	}
	return cfg
}

// resolveRelativePaths anchors relative file paths at the config directory.
func resolveRelativePaths(cfg *Config, baseDir string) {
	if cfg.State.Path != "" && !filepath.IsAbs(cfg.State.Path) {
		cfg.State.Path = filepath.Join(baseDir, cfg.State.Path)
	}
	if cfg.Inventory.SeedFile != "" && !filepath.IsAbs(cfg.Inventory.SeedFile) {
		cfg.Inventory.SeedFile = filepath.Join(baseDir, cfg.Inventory.SeedFile)
	}
}

// interpolateEnv replaces ${VAR} with the environment value; unknown
// variables are left in place so validation can report them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("dispatch.poll_interval must be positive")
	}
	switch cfg.Dispatch.OnMissingConnector {
	case OnMissingConnectorAbort, OnMissingConnectorContinue:
	default:
		return fmt.Errorf("dispatch.on_missing_connector must be %q or %q (got %q)",
			OnMissingConnectorAbort, OnMissingConnectorContinue, cfg.Dispatch.OnMissingConnector)
	}

	if cfg.Ansible.MaxOutputBytes < 0 {
		return fmt.Errorf("ansible.max_output_bytes must not be negative")
	}

	if cfg.API.Enabled {
		if m := envVarPattern.FindStringSubmatch(cfg.API.Auth.APIKey); m != nil {
			return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", m[1])
		}
		if cfg.API.Auth.APIKey == "" && len(cfg.API.Auth.Tokens) == 0 {
			return fmt.Errorf("api.auth: api_key or tokens are required when the API is enabled")
		}
		for i, t := range cfg.API.Auth.Tokens {
			if t.Token == "" {
				return fmt.Errorf("api.auth.tokens[%d]: token is empty", i)
			}
			if m := envVarPattern.FindStringSubmatch(t.Token); m != nil {
				return fmt.Errorf("api.auth.tokens[%d]: environment variable ${%s} is not set", i, m[1])
			}
			if len(t.Scopes) == 0 {
				return fmt.Errorf("api.auth.tokens[%d]: at least one scope is required", i)
			}
		}
	}

	if cfg.Webhooks != nil {
		if cfg.Webhooks.Listen == "" {
			return fmt.Errorf("webhooks.listen is required")
		}
		seen := make(map[string]bool, len(cfg.Webhooks.Endpoints))
		for i, ep := range cfg.Webhooks.Endpoints {
			if ep.Path == "" {
				return fmt.Errorf("webhooks.endpoints[%d]: path is required", i)
			}
			if seen[ep.Path] {
				return fmt.Errorf("webhooks.endpoints[%d]: duplicate path %q", i, ep.Path)
			}
			seen[ep.Path] = true
			if ep.Secret == "" {
				return fmt.Errorf("webhooks.endpoints[%d]: secret is required", i)
			}
			if m := envVarPattern.FindStringSubmatch(ep.Secret); m != nil {
				return fmt.Errorf("webhooks.endpoints[%d]: environment variable ${%s} is not set", i, m[1])
			}
			if ep.SignatureHeader == "" {
				return fmt.Errorf("webhooks.endpoints[%d]: signature_header is required", i)
			}
		}
	}
	return nil
}
