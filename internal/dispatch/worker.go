package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/log"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

// JobQueue is the part of the queue the worker drives.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Complete(ctx context.Context, jobID string, out queue.Outcome) error
}

// Worker dequeues jobs serially and runs them through a Dispatcher.
type Worker struct {
	queue      JobQueue
	dispatcher *Dispatcher
	actions    config.ActionsConfig
	poll       time.Duration
	events     events.Publisher
	logger     *slog.Logger
}

// NewWorker creates a worker. pub may be nil.
func NewWorker(q JobQueue, d *Dispatcher, actions config.ActionsConfig, poll time.Duration, pub events.Publisher) *Worker {
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		queue:      q,
		dispatcher: d,
		actions:    actions,
		poll:       poll,
		events:     pub,
		logger:     log.WithComponent("worker"),
	}
}

// Start runs the dispatch loop until ctx is cancelled. One job runs at a time.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker loop started", "poll_interval", w.poll)
	defer w.logger.Info("worker loop stopped")

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessNext(ctx); err != nil {
				w.logger.Error("failed to process job", "error", err)
			}
		}
	}
}

// ProcessNext runs the oldest queued job, if any. It reports whether a job
// was found.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if job == nil {
		return false, nil
	}
	w.ExecuteJob(ctx, job)
	return true, nil
}

// ExecuteJob runs a claimed job and records its outcome. The returned result
// and error are those of the action.
func (w *Worker) ExecuteJob(ctx context.Context, job *queue.Job) (Result, error) {
	logger := log.WithJob(job.ID).With("action", job.Action)
	logger.Info("executing job", "servers", len(job.ServerIDs))
	w.publish(events.TypeJobStarted, events.JobPayload{JobID: job.ID, Action: job.Action, Status: string(queue.StatusRunning)})

	res, err := w.run(ctx, job)

	out := queue.Outcome{
		Status:        queue.StatusSucceeded,
		ResultStatus:  string(res.Status),
		ResultMessage: res.Message,
	}
	switch {
	case err != nil:
		out.Status = queue.StatusFailed
		out.LastError = err.Error()
		logger.Error("job failed", "error", err)
	case res.Failed():
		out.Status = queue.StatusFailed
		logger.Warn("job finished with failure", "kind", res.Kind, "message", res.Message)
	default:
		logger.Info("job succeeded")
	}

	// Record the outcome even if the job's context was cancelled mid-run.
	completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if cerr := w.queue.Complete(completeCtx, job.ID, out); cerr != nil {
		logger.Error("failed to complete job", "error", cerr)
	}
	w.publish(events.TypeJobCompleted, events.JobPayload{
		JobID:        job.ID,
		Action:       job.Action,
		Status:       string(out.Status),
		Message:      out.ResultMessage,
		ResultStatus: out.ResultStatus,
		Error:        out.LastError,
	})
	return res, err
}

func (w *Worker) run(ctx context.Context, job *queue.Job) (Result, error) {
	switch job.Action {
	case ActionRunAdhocCommand:
		p, err := DecodeAdhocParams(job.Params, w.actions.Adhoc)
		if err != nil {
			return Result{}, err
		}
		return w.dispatcher.RunAdhocCommand(ctx, job.ID, p)
	case ActionRunPlaybook:
		p, err := DecodePlaybookParams(job.Params, w.actions.Playbook)
		if err != nil {
			return Result{}, err
		}
		return w.dispatcher.RunPlaybook(ctx, job.ID, p)
	default:
		return Result{}, fmt.Errorf("unknown action %q", job.Action)
	}
}

func (w *Worker) publish(eventType string, p events.JobPayload) {
	if w.events != nil {
		w.events.Publish(eventType, p)
	}
}
