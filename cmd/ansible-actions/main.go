package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

// command is one top-level noun. Nouns with verbs parse them themselves.
type command struct {
	name    string
	aliases []string
	run     func(args []string) int
}

func commands() []command {
	return []command{
		{name: "serve", run: func(args []string) int {
			if hasHelpFlag(args) {
				printServeHelp()
				return 0
			}
			return runServe(args)
		}},
		{name: "run", run: runRunNoun},
		{name: "job", run: runJobNoun},
		{name: "playbooks", run: runPlaybooksNoun},
		{name: "inventory", run: runInventoryNoun},
		{name: "config", run: runConfigNoun},
		{name: "version", aliases: []string{"--version"}, run: runVersion},
		{name: "help", aliases: []string{"--help", "-h"}, run: func([]string) int {
			printUsage()
			return 0
		}},
	}
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) == 0 {
		printUsage()
		return 1
	}

	name, args := cliArgs[0], cliArgs[1:]
	for _, c := range commands() {
		if c.name == name || slices.Contains(c.aliases, name) {
			return c.run(args)
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	printUsage()
	return 1
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: ansible-actions version [--json]")
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		return printJSON(info)
	}

	fmt.Printf("ansible-actions %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

// currentVersionInfo prefers ldflags values and falls back to the VCS
// stamp the Go toolchain embeds in the binary.
func currentVersionInfo() versionInfo {
	vcs := vcsSettings()
	pick := func(ldflag, setting string) string {
		if v := strings.TrimSpace(ldflag); v != "" && v != "unknown" {
			return v
		}
		return strings.TrimSpace(vcs[setting])
	}

	info := versionInfo{Version: strings.TrimSpace(version), Commit: "unknown", BuildTime: "unknown"}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}
	if commit := pick(gitCommit, "vcs.revision"); commit != "" {
		info.Commit = commit[:min(len(commit), 12)]
	}
	if t, err := time.Parse(time.RFC3339Nano, pick(buildDate, "vcs.time")); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func vcsSettings() map[string]string {
	out := map[string]string{}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, kv := range bi.Settings {
			out[kv.Key] = kv.Value
		}
	}
	return out
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	return slices.ContainsFunc(args, func(a string) bool { return a == "--help" || a == "-h" })
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func printUsage() {
	fmt.Print(`ansible-actions - Run Ansible ad-hoc commands and playbooks against inventory servers

Usage:
  ansible-actions <command> [flags]

Commands:
  serve                  Run the job worker and the HTTP API in the foreground
  run adhoc              Run an ad-hoc module now and print its progress
  run playbook           Run a playbook now and print its progress
  job show <id>          Show a job's status, result and progress
  job watch              Live job watcher TUI (needs a running API)
  playbooks options      List playbook choices for servers or a group
  inventory import       Import the inventory seed file into the state database
  config check           Validate the configuration and inventory seed
  version                Show version information
  help                   Show this help message

Every command that touches state accepts --config PATH. Without it the config
is discovered from $ANSIBLE_ACTIONS_CONFIG, ~/.config/ansible-actions,
/etc/ansible-actions or ./config.yaml.
`)
}
