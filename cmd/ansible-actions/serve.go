package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/ansible-actions/internal/api"
	"github.com/mattjoyce/ansible-actions/internal/auth"
	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/lock"
	"github.com/mattjoyce/ansible-actions/internal/log"
	"github.com/mattjoyce/ansible-actions/internal/queue"
	"github.com/mattjoyce/ansible-actions/internal/webhook"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, *configPath, "")
	if err != nil {
		return exitOnOpenError(err)
	}
	defer a.Close()
	logger := a.logger
	logger.Info("ansible-actions starting", "version", version, "config", a.cfg.SourcePath)

	lockPath := lock.PathFor(a.cfg.State.Path)
	pidLock, err := lock.Acquire(lockPath)
	if err != nil {
		logger.Error("failed to acquire lock (another instance may be running)", "path", lockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired lock", "path", lockPath)

	interrupted, err := a.queue.RecoverInterrupted(ctx, lock.ProcessAlive)
	if err != nil {
		logger.Error("crash recovery failed", "error", err)
		return 1
	}
	for _, id := range interrupted {
		logger.Warn("marked interrupted job failed", "job_id", id)
		a.hub.Publish(events.TypeJobCompleted, events.JobPayload{JobID: id, Status: string(queue.StatusFailed), ResultStatus: "FAILURE"})
	}

	if _, err := a.importSeed(ctx, "", false); err != nil {
		logger.Error("inventory import failed", "error", err)
		return 1
	}

	webhookCfg, err := webhook.FromGlobalConfig(a.cfg)
	if err != nil {
		logger.Error("invalid webhook configuration", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 3)

	w := a.worker(a.recorder)
	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("worker: %w", err)
		}
	}()

	if a.cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(a.cfg.API.Auth.Tokens))
		for _, t := range a.cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{Name: t.Name, Token: t.Token, Scopes: t.Scopes})
		}
		apiServer := api.New(api.Config{
			Listen:      a.cfg.API.Listen,
			APIKey:      a.cfg.API.Auth.APIKey,
			Tokens:      tokens,
			Actions:     a.cfg.Actions,
			CORSOrigins: a.cfg.API.CORSOrigins,
		}, a.queue, a.store, a.recorder, a.resolver, a.hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", a.cfg.API.Listen)
	}

	if webhookCfg != nil {
		hooks := webhook.New(*webhookCfg, a.queue, a.store, a.hub, log.WithComponent("webhook"))
		go func() {
			if err := hooks.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("webhook: %w", err)
			}
		}()
	}

	logger.Info("ansible-actions running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}
	logger.Info("ansible-actions stopped")
	return 0
}

func printServeHelp() {
	fmt.Println("Usage: ansible-actions serve [--config PATH]")
	fmt.Println()
	fmt.Println("Imports the inventory seed, then runs the job worker and, when")
	fmt.Println("api.enabled is set, the HTTP API until interrupted. Signed webhook")
	fmt.Println("endpoints are served when a webhooks section is configured.")
	fmt.Println("Only one serve process may use a state database at a time.")
}
