package connector

import (
	"context"
	"time"
)

// Command is one process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// Output is what a finished Command produced. ExitCode is non-zero when the
// process ran but failed; Run still returns a nil error in that case.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a Command, terminating it once timeout elapses or ctx is
// done. A zero timeout means no limit beyond ctx.
type Runner interface {
	Run(ctx context.Context, cmd Command, timeout time.Duration) (Output, error)
}
