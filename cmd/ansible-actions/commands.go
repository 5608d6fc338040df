package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/ansible-actions/internal/doctor"
	"github.com/mattjoyce/ansible-actions/internal/inspect"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/playbook"
	"github.com/mattjoyce/ansible-actions/internal/queue"
	"github.com/mattjoyce/ansible-actions/internal/tui/watch"
)

// --- job ---

func runJobNoun(args []string) int {
	if len(args) < 1 {
		printJobNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printJobNounHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "show":
		return runJobShow(args[1:])
	case "watch":
		return runJobWatch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown job action: %s\n", args[0])
		return 1
	}
}

func runJobShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")

	// Allow the id before or after flags.
	var jobID string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		jobID, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if jobID == "" && fs.NArg() == 1 {
		jobID = fs.Arg(0)
	}
	if jobID == "" {
		fmt.Fprintln(os.Stderr, "Usage: ansible-actions job show <id> [--json] [--config PATH]")
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath, "warn")
	if err != nil {
		return exitOnOpenError(err)
	}
	defer a.Close()

	report, err := inspect.BuildReport(ctx, inspect.Sources{Jobs: a.queue, Progress: a.recorder, Servers: a.store}, jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		fmt.Fprintf(os.Stderr, "Job not found: %s\n", jobID)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		return printJSON(report)
	}
	fmt.Print(inspect.Render(report))
	return 0
}

func runJobWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "API base URL")
	apiKey := fs.String("api-key", os.Getenv("ANSIBLE_ACTIONS_API_KEY"), "API bearer token")
	jobID := fs.String("job", "", "Watch only this job")
	exit := fs.Bool("exit", false, "Quit when the watched job completes (needs --job)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or ANSIBLE_ACTIONS_API_KEY env var.")
		return 1
	}
	if *exit && *jobID == "" {
		fmt.Fprintln(os.Stderr, "Error: --exit needs --job")
		return 1
	}

	m := watch.New(watch.Options{
		APIURL:       *apiURL,
		APIKey:       *apiKey,
		JobID:        *jobID,
		ExitWhenDone: *exit,
	})
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func printJobNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ansible-actions job <action>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Actions:")
	fmt.Fprintln(w, "  show <id> [--json]                 Show status, result and progress from the state database")
	fmt.Fprintln(w, "  watch [--job ID [--exit]]          Live TUI over the API event stream")
	fmt.Fprintln(w, "        [--api-url URL] [--api-key KEY]")
}

// --- playbooks ---

func runPlaybooksNoun(args []string) int {
	if len(args) < 1 {
		printPlaybooksNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printPlaybooksNounHelp(os.Stdout)
		return 0
	}
	if args[0] != "options" {
		fmt.Fprintf(os.Stderr, "Unknown playbooks action: %s\n", args[0])
		return 1
	}

	var servers stringList
	fs := flag.NewFlagSet("options", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	fs.Var(&servers, "server", "Server hostname (repeatable)")
	group := fs.String("group", "", "Inventory group name, used when no --server is given")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath, "warn")
	if err != nil {
		return exitOnOpenError(err)
	}
	defer a.Close()

	if _, err := a.importSeed(ctx, "", false); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ids, err := serverIDsByHostname(ctx, a.store, servers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	var sel playbook.Selection
	switch len(ids) {
	case 0:
	case 1:
		sel.ServerID = ids[0]
	default:
		sel.ServerIDs = ids
	}
	if *group != "" {
		g, err := a.store.GroupByName(ctx, *group)
		if errors.Is(err, inventory.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: unknown inventory group %q\n", *group)
			return 1
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		sel.GroupID = g.ID
	}

	choices, err := a.resolver.OptionsForPlaybookPath(ctx, sel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return printJSON(choices)
	}
	for _, c := range choices {
		fmt.Printf("%s\t%s\n", c.Value, c.Label)
	}
	return 0
}

func printPlaybooksNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ansible-actions playbooks options [--server HOST]... [--group NAME] [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Lists the playbooks offered for the selection. With several servers only")
	fmt.Fprintln(w, "playbooks available to all of them are listed.")
}

// --- inventory ---

func runInventoryNoun(args []string) int {
	if len(args) < 1 {
		printInventoryNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printInventoryNounHelp(os.Stdout)
		return 0
	}
	if args[0] != "import" {
		fmt.Fprintf(os.Stderr, "Unknown inventory action: %s\n", args[0])
		return 1
	}

	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	file := fs.String("file", "", "Seed file (default inventory.seed_file)")
	force := fs.Bool("force", false, "Import even if the file is unchanged")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath, "warn")
	if err != nil {
		return exitOnOpenError(err)
	}
	defer a.Close()

	res, err := a.importSeed(ctx, *file, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if res == nil {
		fmt.Fprintln(os.Stderr, "Error: no seed file; set inventory.seed_file or pass --file")
		return 1
	}
	if *jsonOut {
		return printJSON(res)
	}
	if res.Skipped {
		fmt.Printf("Unchanged: %s (use --force to re-import)\n", res.Source)
		return 0
	}
	fmt.Printf("Imported %s\n", res.Source)
	fmt.Printf("  connectors: %d  environments: %d  servers: %d  playbooks: %d  groups: %d\n",
		res.Connectors, res.Environments, res.Servers, res.Playbooks, res.Groups)
	return 0
}

func printInventoryNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ansible-actions inventory import [--file PATH] [--force] [--json]")
}

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}
	if args[0] != "check" {
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %v\n", err)
		return 1
	}

	var seed *inventory.Seed
	if cfg.Inventory.SeedFile != "" {
		data, err := os.ReadFile(cfg.Inventory.SeedFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration check FAILED: read inventory seed: %v\n", err)
			return 1
		}
		if seed, err = inventory.ParseSeed(data); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration check FAILED: %s: %v\n", cfg.Inventory.SeedFile, err)
			return 1
		}
	}

	result := doctor.New(cfg, seed).Validate()
	code := 0
	if !result.Valid {
		code = 1
	}
	if *jsonOut {
		if printJSON(result) != 0 {
			return 1
		}
		return code
	}

	fmt.Printf("Config: %s\n", cfg.SourcePath)
	if seed != nil {
		fmt.Printf("Inventory: %s (%d servers, %d groups)\n", cfg.Inventory.SeedFile, len(seed.Servers), len(seed.InventoryGroups))
	}
	for _, i := range result.Errors {
		fmt.Printf("ERROR   %s: %s\n", i.Field, i.Message)
	}
	for _, i := range result.Warnings {
		fmt.Printf("WARNING %s: %s\n", i.Field, i.Message)
	}
	if code != 0 {
		fmt.Println("Status: Configuration check FAILED.")
		return code
	}
	fmt.Println("Status: Configuration check PASSED.")
	return 0
}

func printConfigNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ansible-actions config check [--config PATH]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Validates the configuration file and, if set, the inventory seed.")
}
