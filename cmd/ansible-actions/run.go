package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/ansible-actions/internal/dispatch"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

func runRunNoun(args []string) int {
	if len(args) < 1 {
		printRunNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printRunNounHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "adhoc":
		return runAdhoc(args[1:])
	case "playbook":
		return runPlaybook(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown run action: %s\n", args[0])
		return 1
	}
}

// targetFlags are shared by both run actions.
type targetFlags struct {
	configPath string
	servers    stringList
	conf       string
	timeout    string
}

func (t *targetFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&t.configPath, "config", "", "Path to configuration file or directory")
	fs.Var(&t.servers, "server", "Target server hostname (repeatable)")
	fs.StringVar(&t.conf, "conf", "", "Connector configuration name, used when no --server is given")
	fs.StringVar(&t.timeout, "timeout", "", "Timeout in seconds (default 120, 0 for none)")
}

func runAdhoc(args []string) int {
	var t targetFlags
	var p dispatch.AdhocParams

	fs := flag.NewFlagSet("adhoc", flag.ContinueOnError)
	t.register(fs)
	fs.StringVar(&p.Module, "module", "", "Ansible module to run")
	fs.StringVar(&p.ModuleArguments, "args", "", "Module arguments")
	fs.StringVar(&p.InventoryGroup, "scope", "", "Host pattern used with --conf (default all)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	p.Timeout = dispatch.Timeout(t.timeout)

	return runAction(t, dispatch.ActionRunAdhocCommand, func(confID int64) any {
		p.AnsibleConfID = confID
		return p
	})
}

func runPlaybook(args []string) int {
	var t targetFlags
	var p dispatch.PlaybookParams

	fs := flag.NewFlagSet("playbook", flag.ContinueOnError)
	t.register(fs)
	fs.StringVar(&p.PlaybookPath, "playbook", "", "Playbook path on the control node")
	fs.StringVar(&p.Limit, "limit", "", "Limit pattern used with --conf (default all)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	p.Timeout = dispatch.Timeout(t.timeout)

	return runAction(t, dispatch.ActionRunPlaybook, func(confID int64) any {
		p.AnsibleConfID = confID
		return p
	})
}

// runAction enqueues one job, claims it and executes it in this process,
// echoing progress to stdout.
func runAction(t targetFlags, action string, params func(confID int64) any) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, t.configPath, "warn")
	if err != nil {
		return exitOnOpenError(err)
	}
	defer a.Close()

	if _, err := a.importSeed(ctx, "", false); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	serverIDs, err := serverIDsByHostname(ctx, a.store, t.servers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var confID int64
	if t.conf != "" {
		conf, err := a.store.ConnectorConfByName(ctx, t.conf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: connector configuration %q: %v\n", t.conf, err)
			return 1
		}
		confID = conf.ID
	}

	raw, err := json.Marshal(params(confID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode params: %v\n", err)
		return 1
	}

	jobID, err := a.queue.Enqueue(ctx, queue.EnqueueRequest{
		Action:      action,
		Params:      raw,
		ServerIDs:   serverIDs,
		SubmittedBy: "cli",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	job, err := a.queue.Claim(ctx, jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: claim job %s: %v\n", jobID, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "job %s started\n", jobID)

	res, err := a.worker(echoProgress{next: a.recorder, w: os.Stdout}).ExecuteJob(ctx, job)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if res.Failed() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", res.Status, res.Message)
		return 1
	}
	fmt.Fprintf(os.Stderr, "job %s succeeded\n", jobID)
	return 0
}

func serverIDsByHostname(ctx context.Context, store *inventory.Store, hostnames []string) ([]int64, error) {
	ids := make([]int64, 0, len(hostnames))
	for _, h := range hostnames {
		s, err := store.ServerByHostname(ctx, h)
		if err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				return nil, fmt.Errorf("unknown server %q", h)
			}
			return nil, err
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// echoProgress records progress and prints each message as it arrives.
type echoProgress struct {
	next dispatch.ProgressReporter
	w    io.Writer
}

func (e echoProgress) SetProgress(ctx context.Context, jobID, message string) {
	e.next.SetProgress(ctx, jobID, message)
	fmt.Fprintln(e.w, message)
}

func printRunNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ansible-actions run <adhoc|playbook> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runs one action now in this process and prints its progress.")
	fmt.Fprintln(w, "Exits 1 when the action fails.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Shared flags:")
	fmt.Fprintln(w, "  --config PATH     Configuration file or directory")
	fmt.Fprintln(w, "  --server HOST     Target server hostname (repeatable)")
	fmt.Fprintln(w, "  --conf NAME       Connector configuration to use when no --server is given")
	fmt.Fprintln(w, "  --timeout SECS    Timeout in seconds (default 120, 0 for none)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "adhoc flags:     --module NAME  --args ARGS  --scope PATTERN")
	fmt.Fprintln(w, "playbook flags:  --playbook PATH  --limit PATTERN")
}
