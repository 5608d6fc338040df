// Package doctor checks a loaded configuration and its inventory seed for
// problems that would only surface when a job runs.
package doctor

import (
	"fmt"

	"github.com/mattjoyce/ansible-actions/internal/auth"
	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/dispatch"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/storage"
	"github.com/mattjoyce/ansible-actions/internal/webhook"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a config and an optional parsed seed.
type Doctor struct {
	cfg  *config.Config
	seed *inventory.Seed

	// checkFS is replaced in tests.
	checkFS func(string) error
}

// New creates a Doctor. seed may be nil when no seed file is configured.
func New(cfg *config.Config, seed *inventory.Seed) *Doctor {
	return &Doctor{cfg: cfg, seed: seed, checkFS: storage.CheckLocalFilesystem}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{}

	d.validateState(r)
	d.validateAPIConfig(r)
	d.validateTokenScopes(r)
	d.validateActionDefaults(r)
	d.validateWebhooks(r)
	if d.seed != nil {
		d.warnUnknownWebhookServers(r)
		d.warnUnreachableServers(r)
		d.warnUnofferedPlaybooks(r)
		d.warnUnverifiedHostKeys(r)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateState(r *Result) {
	if err := d.checkFS(d.cfg.State.Path); err != nil {
		d.addError(r, "state", "state.path", err.Error())
	}
}

// validateAPIConfig checks API server settings.
func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured; every request will be rejected")
	}
}

func (d *Doctor) validateTokenScopes(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		if token.Token == "" {
			d.addError(r, "token_scopes", fmt.Sprintf("api.auth.tokens[%d].token", i), "token is empty")
		}
		for j, scope := range token.Scopes {
			if !auth.KnownScope(scope) {
				d.addError(r, "token_scopes", fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j),
					fmt.Sprintf("unknown scope %q", scope))
			}
		}
	}
}

// validateActionDefaults parses configured default timeouts now rather than
// at the first job.
func (d *Doctor) validateActionDefaults(r *Result) {
	check := func(field, value string) {
		if _, err := dispatch.Timeout(value).Seconds(); err != nil {
			d.addError(r, "actions", field, err.Error())
		}
	}
	check("actions.adhoc.timeout", d.cfg.Actions.Adhoc.Timeout)
	check("actions.playbook.timeout", d.cfg.Actions.Playbook.Timeout)
}

func (d *Doctor) validateWebhooks(r *Result) {
	if _, err := webhook.FromGlobalConfig(d.cfg); err != nil {
		d.addError(r, "webhooks", "webhooks.endpoints", err.Error())
	}
}

// warnUnknownWebhookServers flags endpoint hostnames the seed does not
// define. Such a webhook is rejected every time it fires.
func (d *Doctor) warnUnknownWebhookServers(r *Result) {
	if d.cfg.Webhooks == nil {
		return
	}
	known := make(map[string]bool, len(d.seed.Servers))
	for _, s := range d.seed.Servers {
		known[s.Hostname] = true
	}
	for i, ep := range d.cfg.Webhooks.Endpoints {
		for _, h := range ep.Servers {
			if !known[h] {
				d.addWarning(r, "webhooks", fmt.Sprintf("webhooks.endpoints[%d].servers", i),
					fmt.Sprintf("endpoint %q targets server %q, which is not in the inventory seed", ep.Path, h))
			}
		}
	}
}

// warnUnreachableServers flags servers whose environment has no connector.
// Jobs attached to them fail or skip them depending on the dispatch policy.
func (d *Doctor) warnUnreachableServers(r *Result) {
	withConnector := make(map[string]bool, len(d.seed.Environments))
	for _, e := range d.seed.Environments {
		withConnector[e.Name] = len(e.Connectors) > 0
	}
	for i, s := range d.seed.Servers {
		if !withConnector[s.Environment] {
			d.addWarning(r, "inventory", fmt.Sprintf("servers[%d]", i),
				fmt.Sprintf("server %q: environment %q has no connector; jobs on it will report a missing configuration manager", s.Hostname, s.Environment))
		}
	}
}

func (d *Doctor) warnUnofferedPlaybooks(r *Result) {
	offered := map[string]bool{}
	for i, g := range d.seed.InventoryGroups {
		if len(g.Playbooks) == 0 {
			d.addWarning(r, "inventory", fmt.Sprintf("inventory_groups[%d]", i),
				fmt.Sprintf("inventory group %q offers no playbooks", g.Name))
		}
		for _, p := range g.Playbooks {
			offered[p] = true
		}
	}
	for i, p := range d.seed.Playbooks {
		if !offered[p.Path] {
			d.addWarning(r, "inventory", fmt.Sprintf("playbooks[%d]", i),
				fmt.Sprintf("playbook %q is not in any inventory group and will never be offered", p.Path))
		}
	}
}

func (d *Doctor) warnUnverifiedHostKeys(r *Result) {
	for i, c := range d.seed.Connectors {
		if c.Transport == inventory.TransportSSH && c.KnownHostsPath == "" {
			d.addWarning(r, "inventory", fmt.Sprintf("connectors[%d].known_hosts_path", i),
				fmt.Sprintf("connector %q connects over SSH without host key verification", c.Name))
		}
	}
}
