package jail

import (
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"njail-go/accounting"
	"njail-go/config"
	"njail-go/hooklifecycle"
)

// Reap performs one non-blocking wait4(-1, WNOHANG) sweep, finalizing
// every child that has exited. It never blocks: an empty wait set or
// ECHILD both end the sweep normally.
func Reap(table *accounting.Table, hook config.HookSpec, log *logrus.Logger) {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		finalize(table, hook, log, pid, ws)
	}
}

// finalize removes pid's record from table, tears down its cgroup,
// fires the post-reap hook, and logs its disposition. The process must
// already have been wait()-ed (ws is its collected status); finalize
// does not itself call wait4.
func finalize(table *accounting.Table, hook config.HookSpec, log *logrus.Logger, pid int, ws syscall.WaitStatus) {
	rec, ok := table.Remove(pid)
	entry := log.WithField("pid", pid)
	if !ok {
		entry.Warn("reaped unknown pid")
	}

	if ok && rec.Cgroup != nil {
		if err := rec.Cgroup.Destroy(); err != nil {
			entry.WithError(err).Debug("cgroup teardown failed")
		}
	}

	switch {
	case ws.Exited():
		entry.WithField("exit_code", ws.ExitStatus()).Info("child exited")
	case ws.Signaled():
		entry.WithField("signal", ws.Signal()).Info("child killed by signal")
	}

	if hook.Enabled() {
		state := hooklifecycle.PostReapState{
			ChildPID:   pid,
			RemoteAddr: rec.RemoteText,
			ExitCode:   ws.ExitStatus(),
			Signaled:   ws.Signaled(),
		}
		if err := hooklifecycle.RunPostReap(hook, state); err != nil {
			entry.WithError(err).Warn("post-reap hook failed")
		}
	}
}

// EnforceTimeLimits walks every live record and, for any whose
// wall-clock time limit has elapsed, sends SIGCONT then SIGKILL as an
// unwaited pair -- SIGCONT first because a namespaced stopped process
// can otherwise ignore SIGKILL on some kernels.
func EnforceTimeLimits(table *accounting.Table, log *logrus.Logger) {
	now := time.Now()
	for _, rec := range table.Snapshot() {
		if !rec.Expired(now) {
			continue
		}
		log.WithField("pid", rec.PID).Warn("time limit exceeded, killing")
		_ = syscall.Kill(rec.PID, syscall.SIGCONT)
		_ = syscall.Kill(rec.PID, syscall.SIGKILL)
	}
}
