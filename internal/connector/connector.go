// Package connector runs configuration-management work through a connector
// configuration. The only kind today is Ansible, reached either on the local
// host or on a remote control node over SSH.
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
)

// ErrTimedOut is returned when a run exceeds its timeout and was terminated.
var ErrTimedOut = errors.New("connector run timed out")

// Connector executes ad-hoc modules and playbooks. Both calls block until the
// run finishes and return its combined output.
type Connector interface {
	RunAdhocCommand(ctx context.Context, req AdhocRequest) (string, error)
	RunPlaybook(ctx context.Context, req PlaybookRequest) (string, error)
}

// AdhocRequest runs Module with ModuleArgs against Target. Server is set when
// the run was dispatched for one attached server.
type AdhocRequest struct {
	Module     string
	Target     string
	ModuleArgs string
	Timeout    time.Duration
	Server     *inventory.Server
}

// PlaybookRequest runs the playbook at PlaybookPath limited to Limit.
type PlaybookRequest struct {
	PlaybookPath string
	Limit        string
	Timeout      time.Duration
	Server       *inventory.Server
}

// ExitError reports a run that completed with a non-zero exit status.
// Output is also returned alongside it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ansible exited with status %d", e.Code)
}
