package parallel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"compliancedb/internal/storage"
)

// Launcher runs one Task to completion. An error means the worker could not
// be run or did not report; a load failure is carried in the Result.
type Launcher interface {
	Launch(ctx context.Context, t Task) (Result, error)
}

// ProcessLauncher runs each task in a child process: the task is written to
// the child's stdin and its Result read from stdout. Canceling ctx kills the
// child.
type ProcessLauncher struct {
	// Executable defaults to the running binary.
	Executable string
	// Args default to ["worker"].
	Args []string
	// Env is appended to the parent environment.
	Env []string
	// Stderr receives the child's logs; defaults to os.Stderr.
	Stderr io.Writer
	// WaitDelay bounds how long a killed child may hold its pipes open.
	WaitDelay time.Duration
}

func (p *ProcessLauncher) Launch(ctx context.Context, t Task) (Result, error) {
	exe := p.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return Result{}, fmt.Errorf("locate executable: %w", err)
		}
	}
	args := p.Args
	if len(args) == 0 {
		args = []string{"worker"}
	}

	var in, out bytes.Buffer
	if err := WriteTask(&in, t); err != nil {
		return Result{}, fmt.Errorf("encode task %s: %w", t.ID, err)
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = p.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	cmd.WaitDelay = p.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	runErr := cmd.Run()
	if strings.TrimSpace(out.String()) != "" {
		res, err := ReadResult(&out)
		if err == nil {
			return res, nil
		}
		runErr = errors.Join(runErr, err)
	}
	if runErr == nil {
		runErr = errors.New("no result on stdout")
	}
	if ctx.Err() != nil {
		runErr = errors.Join(ctx.Err(), runErr)
	}
	return Result{}, fmt.Errorf("worker %s %s: %w", t.ID, t.Range, runErr)
}

// InProcessLauncher runs tasks on goroutines of the current process, each
// with its own connection from Open. It serves tests and embedded use.
type InProcessLauncher struct {
	Open storage.Opener
	Log  *zap.Logger
}

func (l *InProcessLauncher) Launch(ctx context.Context, t Task) (Result, error) {
	open := l.Open
	if open == nil {
		open = storage.Open
	}
	return RunTask(ctx, t, open, l.Log), nil
}
