package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/ansible-actions/internal/config"
)

// Action names as stored on jobs.
const (
	ActionRunAdhocCommand = "run_adhoc_command"
	ActionRunPlaybook     = "run_playbook"
)

// AdhocParams are the inputs of run_adhoc_command. AnsibleConfID and
// InventoryGroup only matter for jobs without attached servers.
type AdhocParams struct {
	Module          string  `json:"module"`
	ModuleArguments string  `json:"module_arguments,omitempty"`
	Timeout         Timeout `json:"timeout,omitempty"`
	AnsibleConfID   int64   `json:"ansibleconf_id,omitempty"`
	InventoryGroup  string  `json:"inventory_group,omitempty"`
}

// PlaybookParams are the inputs of run_playbook. AnsibleConfID and Limit only
// matter for jobs without attached servers.
type PlaybookParams struct {
	PlaybookPath  string  `json:"playbook_path"`
	Timeout       Timeout `json:"timeout,omitempty"`
	AnsibleConfID int64   `json:"ansibleconf_id,omitempty"`
	Limit         string  `json:"limit,omitempty"`
}

// WithDefaults fills unset fields from the configured action inputs.
func (p AdhocParams) WithDefaults(d config.AdhocDefaults) AdhocParams {
	if p.Module == "" {
		p.Module = d.Module
	}
	if p.ModuleArguments == "" {
		p.ModuleArguments = d.ModuleArguments
	}
	if p.Timeout == "" {
		p.Timeout = Timeout(d.Timeout)
	}
	return p
}

func (p PlaybookParams) WithDefaults(d config.PlaybookDefaults) PlaybookParams {
	if p.PlaybookPath == "" {
		p.PlaybookPath = d.PlaybookPath
	}
	if p.Timeout == "" {
		p.Timeout = Timeout(d.Timeout)
	}
	return p
}

func (p AdhocParams) validate() error {
	if p.Module == "" {
		return fmt.Errorf("module is required")
	}
	return nil
}

func (p PlaybookParams) validate() error {
	if p.PlaybookPath == "" {
		return fmt.Errorf("playbook_path is required")
	}
	return nil
}

// DecodeAdhocParams decodes stored job params and applies defaults.
func DecodeAdhocParams(raw json.RawMessage, d config.AdhocDefaults) (AdhocParams, error) {
	var p AdhocParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return AdhocParams{}, fmt.Errorf("decode %s params: %w", ActionRunAdhocCommand, err)
		}
	}
	p = p.WithDefaults(d)
	if err := p.validate(); err != nil {
		return AdhocParams{}, fmt.Errorf("%s: %w", ActionRunAdhocCommand, err)
	}
	return p, nil
}

// DecodePlaybookParams decodes stored job params and applies defaults.
func DecodePlaybookParams(raw json.RawMessage, d config.PlaybookDefaults) (PlaybookParams, error) {
	var p PlaybookParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return PlaybookParams{}, fmt.Errorf("decode %s params: %w", ActionRunPlaybook, err)
		}
	}
	p = p.WithDefaults(d)
	if err := p.validate(); err != nil {
		return PlaybookParams{}, fmt.Errorf("%s: %w", ActionRunPlaybook, err)
	}
	return p, nil
}
