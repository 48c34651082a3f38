// Package hooklifecycle implements the jailer's two connection-lifecycle
// hook points: pre-fork (before a child is cloned) and post-reap (after
// a child has exited and been waited on). Adapted from the OCI
// prestart/poststop hook mechanism -- an external command runs with a
// JSON state snapshot on its stdin, honoring a configured timeout.
package hooklifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"njail-go/config"
	cerrors "njail-go/errors"
)

// PreForkState is the snapshot piped to a pre-fork hook's stdin.
type PreForkState struct {
	RemoteAddr string `json:"remote_addr"`
}

// PostReapState is the snapshot piped to a post-reap hook's stdin.
type PostReapState struct {
	ChildPID   int    `json:"child_pid"`
	RemoteAddr string `json:"remote_addr"`
	ExitCode   int    `json:"exit_code"`
	Signaled   bool   `json:"signaled"`
}

// RunPreFork runs the configured pre-fork hook, if any. A hook failure
// or timeout is returned to the caller, which per the error-handling
// design must log it and proceed -- a hook never blocks or fails the
// connection it's attached to.
func RunPreFork(spec config.HookSpec, state PreForkState) error {
	if !spec.Enabled() {
		return nil
	}
	return run(spec, state)
}

// RunPostReap runs the configured post-reap hook, if any.
func RunPostReap(spec config.HookSpec, state PostReapState) error {
	if !spec.Enabled() {
		return nil
	}
	return run(spec, state)
}

func run(spec config.HookSpec, state any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal hook state: %w", err)
	}

	path := spec.Command[0]
	args := spec.Command[1:]

	ctx := context.Background()
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(spec.Timeout)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(stateJSON)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s: %v", cerrors.ErrHookTimeout, path, err)
		}
		return fmt.Errorf("%w: %s: %v", cerrors.ErrHookFailed, path, err)
	}

	return nil
}
