package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/connector"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/log"
)

// DefaultScope is used when a job without servers names no scope.
const DefaultScope = "all"

// Inventory is the read-only query surface the dispatcher needs.
type Inventory interface {
	ServersForJob(ctx context.Context, jobID string) ([]inventory.Server, error)
	ConnectorConf(ctx context.Context, id int64) (*inventory.ConnectorConf, error)
	EnvironmentConnectorConfs(ctx context.Context, environmentID int64) ([]inventory.ConnectorConf, error)
}

// ConnectorResolver turns a stored configuration into a live connector.
type ConnectorResolver interface {
	Resolve(conf inventory.ConnectorConf) (connector.Connector, error)
}

// ProgressReporter receives human-readable progress for a job. Delivery is
// best effort.
type ProgressReporter interface {
	SetProgress(ctx context.Context, jobID, message string)
}

// Status is the job-result status: empty on success.
type Status string

const (
	StatusSuccess Status = ""
	StatusFailure Status = "FAILURE"
)

// FailureKind names the locally handled failures.
type FailureKind string

const (
	MissingConfiguration FailureKind = "missing_configuration"
	NoConnectorForServer FailureKind = "no_connector_for_server"
)

const (
	msgMissingConfiguration = "Can't run this action without an Ansible configuration manager!"
)

// Result is an action's outcome in the job framework's convention.
type Result struct {
	Status  Status      `json:"status"`
	Message string      `json:"message"`
	Detail  string      `json:"detail"`
	Kind    FailureKind `json:"kind,omitempty"`
	// Skipped lists servers that were not dispatched for lack of a connector.
	Skipped []string `json:"skipped,omitempty"`
}

// Tuple returns (status, message, detail).
func (r Result) Tuple() (string, string, string) {
	return string(r.Status), r.Message, r.Detail
}

func (r Result) Failed() bool {
	return r.Status == StatusFailure
}

func failure(kind FailureKind, msg string) Result {
	return Result{Status: StatusFailure, Message: msg, Kind: kind}
}

// TargetSelection is either ExplicitScope or AttachedServers.
type TargetSelection interface {
	isTargetSelection()
}

// ExplicitScope runs once through the named configuration.
type ExplicitScope struct {
	ConfID int64
	Scope  string
}

// AttachedServers runs once per server, in order.
type AttachedServers struct {
	Servers []inventory.Server
}

func (ExplicitScope) isTargetSelection()   {}
func (AttachedServers) isTargetSelection() {}

// Options tune dispatch policy.
type Options struct {
	// OnMissingConnector is config.OnMissingConnectorAbort (default) or
	// config.OnMissingConnectorContinue.
	OnMissingConnector string
}

type Dispatcher struct {
	inventory Inventory
	resolver  ConnectorResolver
	progress  ProgressReporter
	opts      Options
	logger    *slog.Logger
}

func New(inv Inventory, resolver ConnectorResolver, progress ProgressReporter, opts Options) *Dispatcher {
	if opts.OnMissingConnector == "" {
		opts.OnMissingConnector = config.OnMissingConnectorAbort
	}
	return &Dispatcher{
		inventory: inv,
		resolver:  resolver,
		progress:  progress,
		opts:      opts,
		logger:    log.WithComponent("dispatch"),
	}
}

// SelectTargets picks the job's attached servers, or the explicit
// configuration and scope when there are none.
func (d *Dispatcher) SelectTargets(ctx context.Context, jobID string, confID int64, scope string) (TargetSelection, error) {
	servers, err := d.inventory.ServersForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("servers for job %s: %w", jobID, err)
	}
	if len(servers) > 0 {
		return AttachedServers{Servers: servers}, nil
	}
	if scope == "" {
		scope = DefaultScope
	}
	return ExplicitScope{ConfID: confID, Scope: scope}, nil
}

// RunAdhocCommand runs an ad-hoc module for the job.
func (d *Dispatcher) RunAdhocCommand(ctx context.Context, jobID string, p AdhocParams) (Result, error) {
	sel, err := d.SelectTargets(ctx, jobID, p.AnsibleConfID, p.InventoryGroup)
	if err != nil {
		return Result{}, err
	}
	return d.dispatch(ctx, jobID, sel, unit{
		kind: "command",
		name: p.Module,
		target: func(s inventory.Server) string {
			return s.Hostname
		},
		invoke: func(ctx context.Context, c connector.Connector, target string, server *inventory.Server) (string, error) {
			timeout, err := p.Timeout.Duration()
			if err != nil {
				return "", err
			}
			return c.RunAdhocCommand(ctx, connector.AdhocRequest{
				Module:     p.Module,
				Target:     target,
				ModuleArgs: p.ModuleArguments,
				Timeout:    timeout,
				Server:     server,
			})
		},
	})
}

// RunPlaybook runs a playbook for the job.
func (d *Dispatcher) RunPlaybook(ctx context.Context, jobID string, p PlaybookParams) (Result, error) {
	sel, err := d.SelectTargets(ctx, jobID, p.AnsibleConfID, p.Limit)
	if err != nil {
		return Result{}, err
	}
	return d.dispatch(ctx, jobID, sel, unit{
		kind: "playbook",
		name: p.PlaybookPath,
		target: func(s inventory.Server) string {
			return s.IP
		},
		invoke: func(ctx context.Context, c connector.Connector, limit string, server *inventory.Server) (string, error) {
			timeout, err := p.Timeout.Duration()
			if err != nil {
				return "", err
			}
			return c.RunPlaybook(ctx, connector.PlaybookRequest{
				PlaybookPath: p.PlaybookPath,
				Limit:        limit,
				Timeout:      timeout,
				Server:       server,
			})
		},
	})
}

// unit is one kind of work: how to name it, scope it to a server and run it.
// The timeout is parsed by invoke, after target selection, so a job with no
// usable target reports its FAILURE result even when the timeout is malformed.
type unit struct {
	kind   string
	name   string
	target func(inventory.Server) string
	invoke func(ctx context.Context, c connector.Connector, target string, server *inventory.Server) (string, error)
}

func (d *Dispatcher) dispatch(ctx context.Context, jobID string, sel TargetSelection, u unit) (Result, error) {
	logger := log.WithJob(jobID).With("component", "dispatch", u.kind, u.name)

	switch s := sel.(type) {
	case ExplicitScope:
		return d.runExplicit(ctx, jobID, s, u, logger)
	case AttachedServers:
		return d.runServers(ctx, jobID, s.Servers, u, logger)
	default:
		return Result{}, fmt.Errorf("unknown target selection %T", sel)
	}
}

func (d *Dispatcher) runExplicit(ctx context.Context, jobID string, s ExplicitScope, u unit, logger *slog.Logger) (Result, error) {
	conf, err := d.inventory.ConnectorConf(ctx, s.ConfID)
	if errors.Is(err, inventory.ErrNotFound) {
		logger.Warn("connector configuration not found", "conf_id", s.ConfID)
		return failure(MissingConfiguration, msgMissingConfiguration), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("connector conf %d: %w", s.ConfID, err)
	}

	conn, err := d.resolver.Resolve(*conf)
	if err != nil {
		return Result{}, fmt.Errorf("resolve connector %q: %w", conf.Name, err)
	}

	logger.Info("dispatching", "scope", s.Scope, "connector", conf.Name)
	d.progress.SetProgress(ctx, jobID, fmt.Sprintf("Running %s '%s' on '%s' servers", u.kind, u.name, s.Scope))
	if err := d.invoke(ctx, jobID, conn, u, s.Scope, nil); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (d *Dispatcher) runServers(ctx context.Context, jobID string, servers []inventory.Server, u unit, logger *slog.Logger) (Result, error) {
	var skipped []string
	for i := range servers {
		srv := servers[i]
		confs, err := d.inventory.EnvironmentConnectorConfs(ctx, srv.EnvironmentID)
		if err != nil {
			return Result{}, fmt.Errorf("connector confs for server %q: %w", srv.Hostname, err)
		}
		if len(confs) == 0 {
			logger.Warn("no connector for server", "server", srv.Hostname, "environment_id", srv.EnvironmentID)
			if d.opts.OnMissingConnector != config.OnMissingConnectorContinue {
				res := failure(NoConnectorForServer, noConnectorMessage([]string{srv.Hostname}))
				res.Skipped = []string{srv.Hostname}
				return res, nil
			}
			skipped = append(skipped, srv.Hostname)
			continue
		}

		conn, err := d.resolver.Resolve(confs[0])
		if err != nil {
			return Result{}, fmt.Errorf("resolve connector %q: %w", confs[0].Name, err)
		}

		logger.Info("dispatching", "server", srv.Hostname, "connector", confs[0].Name)
		d.progress.SetProgress(ctx, jobID, fmt.Sprintf("Running %s '%s' on server '%s'", u.kind, u.name, srv.Hostname))
		if err := d.invoke(ctx, jobID, conn, u, u.target(srv), &srv); err != nil {
			return Result{}, err
		}
	}

	if len(skipped) > 0 {
		res := failure(NoConnectorForServer, noConnectorMessage(skipped))
		res.Skipped = skipped
		return res, nil
	}
	return Result{}, nil
}

// invoke runs the unit and reports its output. Output is reported even when
// the connector fails, then the error is returned.
func (d *Dispatcher) invoke(ctx context.Context, jobID string, conn connector.Connector, u unit, target string, server *inventory.Server) error {
	start := time.Now()
	out, err := u.invoke(ctx, conn, target, server)
	if out != "" {
		d.progress.SetProgress(ctx, jobID, out)
	}
	if err != nil {
		d.logger.Error("connector failed", "job_id", jobID, u.kind, u.name, "target", target, "error", err)
		return fmt.Errorf("%s %q on %q: %w", u.kind, u.name, target, err)
	}
	d.logger.Info("connector finished", "job_id", jobID, "target", target, "duration", time.Since(start))
	return nil
}

func noConnectorMessage(hostnames []string) string {
	if len(hostnames) == 1 {
		return fmt.Sprintf("No Ansible configuration manager found for server '%s'.", hostnames[0])
	}
	return fmt.Sprintf("No Ansible configuration manager found for servers '%s'.", strings.Join(hostnames, "', '"))
}
