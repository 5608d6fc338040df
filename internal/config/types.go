package config

import "time"

// Missing-connector policies for dispatch.on_missing_connector.
const (
	OnMissingConnectorAbort    = "abort"
	OnMissingConnectorContinue = "continue"
)

// Config represents the complete ansible-actions configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	State     StateConfig     `yaml:"state"`
	API       APIConfig       `yaml:"api,omitempty"`
	Inventory InventoryConfig `yaml:"inventory"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Actions   ActionsConfig   `yaml:"actions"`
	Ansible   AnsibleConfig   `yaml:"ansible"`
	Webhooks  *WebhooksConfig `yaml:"webhooks,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
	// CORSOrigins are browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes. Name labels it in logs
// and in a job's submitted_by.
type APIToken struct {
	Name   string   `yaml:"name,omitempty"`
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// InventoryConfig points at the YAML seed the inventory store is imported from.
type InventoryConfig struct {
	SeedFile string `yaml:"seed_file,omitempty"`
}

// DispatchConfig controls the job worker and the per-server dispatch policy.
type DispatchConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// OnMissingConnector is "abort" (stop at the first server whose
	// environment has no connector) or "continue" (skip it and report it).
	OnMissingConnector string `yaml:"on_missing_connector"`
}

// ActionsConfig holds the action inputs used when a job does not supply them.
type ActionsConfig struct {
	Adhoc    AdhocDefaults    `yaml:"adhoc"`
	Playbook PlaybookDefaults `yaml:"playbook"`
}

// AdhocDefaults are the run_adhoc_command action inputs.
type AdhocDefaults struct {
	Module          string `yaml:"module"`
	ModuleArguments string `yaml:"module_arguments"`
	Timeout         string `yaml:"timeout"`
}

// PlaybookDefaults are the run_playbook action inputs.
type PlaybookDefaults struct {
	PlaybookPath string `yaml:"playbook_path"`
	Timeout      string `yaml:"timeout"`
}

// AnsibleConfig defines how connectors invoke the ansible binaries.
type AnsibleConfig struct {
	AdhocBin         string        `yaml:"adhoc_bin"`
	PlaybookBin      string        `yaml:"playbook_bin"`
	MaxOutputBytes   int           `yaml:"max_output_bytes"`
	TerminationGrace time.Duration `yaml:"termination_grace"`
}

// WebhooksConfig defines the signed webhook listener that triggers actions.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint binds one HTTP path to a fixed action run.
type WebhookEndpoint struct {
	Path   string         `yaml:"path"`
	Action string         `yaml:"action"`
	Params map[string]any `yaml:"params,omitempty"`
	// Servers are inventory hostnames, resolved when the webhook fires.
	Servers         []string `yaml:"servers,omitempty"`
	Secret          string   `yaml:"secret"`
	SignatureHeader string   `yaml:"signature_header"`
	MaxBodySize     string   `yaml:"max_body_size,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "ansible-actions",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Dispatch: DispatchConfig{
			PollInterval:       time.Second,
			OnMissingConnector: OnMissingConnectorAbort,
		},
		Ansible: AnsibleConfig{
			AdhocBin:         "ansible",
			PlaybookBin:      "ansible-playbook",
			MaxOutputBytes:   1 << 20,
			TerminationGrace: 5 * time.Second,
		},
	}
}
