// Package jail implements the supervisor side of the jailer: the
// fork/clone orchestrator, the in-child environment builder it hands
// off to, the reaper, shutdown, and the three top-level mode loops.
package jail

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"njail-go/config"
	"njail-go/linux"
)

// ChildFiles are the three descriptors the child's stdio is wired to,
// plus the write end of the log pipe back to the parent.
type ChildFiles struct {
	Stdin, Stdout, Stderr *os.File
	LogPipe               *os.File
}

// step is one fallible §4.F action. Any non-nil error is fatal to the
// child: the sequence stops and the caller must _exit(1) without
// returning, so a partially-jailed process never reaches execve.
type step struct {
	name string
	run  func() error
}

// RunChildEnvironment executes the in-child environment builder in its
// mandated order -- prepareEnv, setupFD, mountFS, dropPrivs, setLimits,
// makeFdsCOE, sandboxApply -- and on success execve's into cfg.Command.
// It never returns on success; on failure it returns the step name and
// error so the caller can log before _exit(1).
// The child's own cgroup membership is established by the orchestrator
// (the parent), before this function is entered: cgroup.procs only
// accepts pids as the kernel's global pid table knows them, and once a
// PID namespace is in play os.Getpid() inside the child no longer
// returns that value.
func RunChildEnvironment(cfg *config.Configuration, files ChildFiles, uid, gid int, log *logrus.Logger) (string, error) {
	steps := []step{
		{"prepareEnv", func() error { return prepareEnv(cfg) }},
		{"setupFD", func() error { return setupFD(files, cfg.Silent) }},
		{"mountFS", func() error { return linux.SetupRootfs(cfg.FS) }},
		{"dropPrivs", func() error { return dropPrivs(cfg, uid, gid) }},
		{"setLimits", func() error { return linux.ApplyRlimits(cfg.Lim) }},
		{"makeFdsCOE", func() error { return makeFdsCOE(files) }},
		{"sandboxApply", func() error { return sandboxApply(cfg) }},
	}

	for _, s := range steps {
		if err := s.run(); err != nil {
			return s.name, err
		}
	}

	return execve(cfg)
}

// prepareEnv sets the UTS hostname and personality bits. Session id and
// process group are established by the parent via SysProcAttr.Setsid at
// clone time; affinity is left at the kernel default (no CPU-set flag
// exists in §6).
func prepareEnv(cfg *config.Configuration) error {
	if err := linux.SetHostname(cfg.Hostname); err != nil {
		return fmt.Errorf("set hostname: %w", err)
	}
	if err := linux.ApplyPersonality(cfg.Personality); err != nil {
		return fmt.Errorf("apply personality: %w", err)
	}
	return nil
}

// setupFD redirects fd 0/1/2 to the accepted connection (or /dev/null
// when silent) and leaves the log pipe's write end where the parent can
// drain it until the child execs.
func setupFD(files ChildFiles, silent bool) error {
	stdin, stdout, stderr := files.Stdin, files.Stdout, files.Stderr

	if silent {
		devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("open /dev/null: %w", err)
		}
		stdin, stdout, stderr = devNull, devNull, devNull
	}

	if err := dup2(stdin.Fd(), 0); err != nil {
		return fmt.Errorf("dup2 stdin: %w", err)
	}
	if err := dup2(stdout.Fd(), 1); err != nil {
		return fmt.Errorf("dup2 stdout: %w", err)
	}
	if err := dup2(stderr.Fd(), 2); err != nil {
		return fmt.Errorf("dup2 stderr: %w", err)
	}
	return nil
}

// dropPrivs switches to the target uid/gid, clears supplementary
// groups, and drops capabilities per cfg.KeepCaps.
//
// The uid/gid switch is skipped entirely when a user namespace is in
// play: BuildSysProcAttr already wrote a single-id mapping of
// namespace-uid/gid 0 to the resolved target uid/gid, so the process
// is the target user as seen from outside the namespace the instant
// clone returns. Namespace-relative 0 is the only id that mapping
// covers -- calling setuid/setgid with the raw host-side uid/gid here
// would be an invalid namespace-relative id (EINVAL), and setgroups is
// denied outright (GidMappingsEnableSetgroups is false, so the kernel
// wrote "deny" to /proc/self/setgroups before the gid_map write).
func dropPrivs(cfg *config.Configuration, uid, gid int) error {
	if !cfg.NS.User {
		if err := setGroups(nil); err != nil {
			return fmt.Errorf("setgroups: %w", err)
		}
		if err := setGid(gid); err != nil {
			return fmt.Errorf("setgid: %w", err)
		}
		if err := setUid(uid); err != nil {
			return fmt.Errorf("setuid: %w", err)
		}
	}
	if err := linux.DropPrivileges(cfg.KeepCaps); err != nil {
		return fmt.Errorf("drop capabilities: %w", err)
	}
	return nil
}

// makeFdsCOE sets close-on-exec on every descriptor outside 0/1/2, so
// execve inherits only the intended fds. That includes the log pipe's
// write end: it arrives through ExtraFiles without FD_CLOEXEC, and
// marking it here closes it at execve so the parent's drain sees EOF.
// The pipe stays usable for setup logging until then.
func makeFdsCOE(files ChildFiles) error {
	return closeOnExecAllExcept(0, 1, 2)
}

// sandboxApply installs the seccomp-bpf filter, last so the filter
// cannot block any earlier setup syscall.
func sandboxApply(cfg *config.Configuration) error {
	if !cfg.ApplySandbox {
		return nil
	}
	policy := linux.DefaultSeccompPolicy()
	return linux.SetupSeccomp(policy)
}

// execve replaces the child's image with cfg.Command. On success it
// never returns.
func execve(cfg *config.Configuration) (string, error) {
	path, err := exec.LookPath(cfg.Command[0])
	if err != nil {
		return "execve", fmt.Errorf("lookup %s: %w", cfg.Command[0], err)
	}

	env := []string{}
	if cfg.KeepEnv {
		env = os.Environ()
	}

	if err := execProcess(path, cfg.Command, env); err != nil {
		return "execve", fmt.Errorf("execve %s: %w", path, err)
	}
	return "", nil // unreachable on success
}
