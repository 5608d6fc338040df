package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/log"
)

// Ansible runs the ansible and ansible-playbook binaries through a Runner.
type Ansible struct {
	conf        inventory.ConnectorConf
	runner      Runner
	adhocBin    string
	playbookBin string
	maxOutput   int
	logger      *slog.Logger
}

// AnsibleOptions are process-wide settings shared by every Ansible connector.
type AnsibleOptions struct {
	AdhocBin       string
	PlaybookBin    string
	MaxOutputBytes int
}

func NewAnsible(conf inventory.ConnectorConf, runner Runner, opts AnsibleOptions) *Ansible {
	if opts.AdhocBin == "" {
		opts.AdhocBin = "ansible"
	}
	if opts.PlaybookBin == "" {
		opts.PlaybookBin = "ansible-playbook"
	}
	return &Ansible{
		conf:        conf,
		runner:      runner,
		adhocBin:    opts.AdhocBin,
		playbookBin: opts.PlaybookBin,
		maxOutput:   opts.MaxOutputBytes,
		logger:      log.WithConnector(conf.Name),
	}
}

func (a *Ansible) RunAdhocCommand(ctx context.Context, req AdhocRequest) (string, error) {
	return a.run(ctx, a.AdhocCommand(req), req.Timeout)
}

func (a *Ansible) RunPlaybook(ctx context.Context, req PlaybookRequest) (string, error) {
	return a.run(ctx, a.PlaybookCommand(req), req.Timeout)
}

func (a *Ansible) run(ctx context.Context, cmd Command, timeout time.Duration) (string, error) {
	a.logger.Info("running ansible", "command", cmd.Name, "args", cmd.Args, "timeout", timeout)
	out, err := a.runner.Run(ctx, cmd, timeout)
	text := a.combine(out)
	if err != nil {
		return text, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if out.ExitCode != 0 {
		a.logger.Warn("ansible exited with non-zero status", "command", cmd.Name, "exit_code", out.ExitCode)
		return text, &ExitError{Code: out.ExitCode}
	}
	return text, nil
}

// AdhocCommand builds: ansible <target> -m <module> [-a <args>] [-i ...].
func (a *Ansible) AdhocCommand(req AdhocRequest) Command {
	args := []string{req.Target, "-m", req.Module}
	if req.ModuleArgs != "" {
		args = append(args, "-a", req.ModuleArgs)
	}
	args = append(args, a.inventoryArgs(req.Server, req.Target)...)
	return Command{Name: a.adhocBin, Args: args, Dir: a.conf.WorkDir}
}

// PlaybookCommand builds: ansible-playbook <path> --limit <limit> [-i ...].
func (a *Ansible) PlaybookCommand(req PlaybookRequest) Command {
	args := []string{req.PlaybookPath, "--limit", req.Limit}
	args = append(args, a.inventoryArgs(req.Server, req.Limit)...)
	return Command{Name: a.playbookBin, Args: args, Dir: a.conf.WorkDir}
}

// inventoryArgs adds the configured inventory and, for a single server, an
// inline one-host inventory so the host resolves even when the control
// node's inventory does not list it.
func (a *Ansible) inventoryArgs(server *inventory.Server, host string) []string {
	var args []string
	if a.conf.InventoryPath != "" {
		args = append(args, "-i", a.conf.InventoryPath)
	}
	if server != nil && host != "" {
		args = append(args, "-i", host+",")
	}
	return args
}

func (a *Ansible) combine(out Output) string {
	var b strings.Builder
	b.WriteString(out.Stdout)
	if out.Stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(out.Stdout, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(out.Stderr)
	}
	s := b.String()
	if a.maxOutput > 0 && len(s) > a.maxOutput {
		return truncateUTF8(s, a.maxOutput)
	}
	return s
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
