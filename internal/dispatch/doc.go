// Package dispatch decides where configuration-management work runs and
// runs it.
//
// A job either carries attached servers or names a connector configuration
// directly. With servers, each one is dispatched in order through the first
// connector configuration of its environment, scoped to that server alone
// (hostname for ad-hoc commands, IP for playbooks). Without servers, the
// named configuration is used once with an explicit scope, "all" when none
// is given. The two cases never both run for one job.
//
// Outcomes:
//   - Named configuration missing → FAILURE result
//   - Server environment without a connector → FAILURE result naming the
//     server; with on_missing_connector=abort the remaining servers are not
//     attempted, with continue they are
//   - Malformed timeout, lookup or connector errors → returned as error
//
// The Worker hosts the two actions on top of the job queue: it dequeues
// serially, decodes parameters by action name and records the outcome.
package dispatch

//go:generate go run github.com/golang/mock/mockgen -destination mocks/dispatch.go -package mocks . Inventory,ConnectorResolver,ProgressReporter,JobQueue
//go:generate go run github.com/golang/mock/mockgen -destination mocks/connector.go -package mocks github.com/mattjoyce/ansible-actions/internal/connector Connector
