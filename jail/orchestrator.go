package jail

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"njail-go/accounting"
	"njail-go/config"
	"njail-go/linux"
	"njail-go/netattach"
)

// configEnvVar carries the marshaled configuration to the re-exec'd
// jail-init process; uidEnvVar/gidEnvVar carry the resolved target
// identity, resolved once in the parent rather than re-resolved (and
// possibly re-looked-up against a now-invisible /etc/passwd) inside the
// jailed mount namespace.
const (
	configEnvVar = "_NJAIL_CONFIG"
	uidEnvVar    = "_NJAIL_UID"
	gidEnvVar    = "_NJAIL_GID"
)

// reExecArg is the hidden cobra subcommand the orchestrator re-execs
// itself with. It must match cmd's registration.
const reExecArg = "jail-init"

// Stdio is the three descriptors the spawned child's stdin/stdout/stderr
// are wired to -- either a accepted TCP connection (LISTEN_TCP mode,
// used for all three) or the supervisor's own stdio (STANDALONE modes).
type Stdio struct {
	Stdin, Stdout, Stderr *os.File
}

// Spawn clones a fresh jailed child for cfg, attaches any configured
// virtual network interface once the child's namespaces exist, drains
// its setup log, and records it in the accounting table. It returns once
// the setup log has been drained to EOF, i.e. once the child has exec'd
// the jailed command or exited; it does not wait for the command to exit.
func Spawn(cfg *config.Configuration, io Stdio, remoteAddr string, table *accounting.Table, log *logrus.Logger) (int, error) {
	uid, err := config.ResolveUser(cfg.User)
	if err != nil {
		return 0, fmt.Errorf("resolve user: %w", err)
	}
	gid, err := config.ResolveGroup(cfg.Group)
	if err != nil {
		return 0, fmt.Errorf("resolve group: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("get executable: %w", err)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("marshal configuration: %w", err)
	}

	logPipe, err := NewLogPipe()
	if err != nil {
		return 0, fmt.Errorf("create log pipe: %w", err)
	}

	sysProcAttr, err := linux.BuildSysProcAttr(cfg.NS, uid, gid)
	if err != nil {
		logPipe.Close()
		return 0, fmt.Errorf("build sysprocattr: %w", err)
	}

	cmd := exec.Command(self, reExecArg)
	cmd.Stdin = io.Stdin
	cmd.Stdout = io.Stdout
	cmd.Stderr = io.Stderr
	cmd.ExtraFiles = []*os.File{logPipe.WriteFile()}
	cmd.SysProcAttr = sysProcAttr
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", configEnvVar, cfgJSON),
		fmt.Sprintf("%s=%d", uidEnvVar, uid),
		fmt.Sprintf("%s=%d", gidEnvVar, gid),
	)

	if err := cmd.Start(); err != nil {
		logPipe.Close()
		return 0, fmt.Errorf("start child: %w", err)
	}
	pid := cmd.Process.Pid

	// The write end now lives only in the child; closing our copy lets
	// Drain observe EOF once the child execs (CLOEXEC) or exits.
	logPipe.CloseWrite()

	if err := netattach.AttachFromConfig(cfg.Net.MacvtapIface, cfg.Net.MacvlanIface, pid); err != nil {
		log.WithError(err).WithField("pid", pid).Warn("net attach failed")
	}

	var cgroup *linux.Cgroup
	if cfg.Cg.Enabled() {
		cgroup, err = attachCgroup(pid, cfg.Cg)
		if err != nil {
			log.WithError(err).WithField("pid", pid).Warn("cgroup setup failed")
		}
	}

	// Drain synchronously to EOF before recording the child: C -> D -> E
	// -> I -> log-drain -> record-in-B is a strict sequence, matching
	// subprocRunChild's synchronous pipe-to-EOF read before subprocAdd.
	if err := logPipe.Drain(func(line string) {
		log.WithField("pid", pid).Debug("child setup: " + line)
	}); err != nil {
		log.WithError(err).WithField("pid", pid).Warn("log pipe drain failed")
	}
	logPipe.read.Close()

	// Release the goroutine's reaper duty to the caller: Spawn does not
	// call cmd.Wait, since the child's lifetime is tracked in the
	// accounting table and reaped by reap-loop wait4 calls, not by this
	// *exec.Cmd value going out of scope.
	_ = cmd.Process.Release()

	remoteIP := remoteHost(remoteAddr)
	table.Insert(accounting.Record{
		PID:              pid,
		Start:            time.Now(),
		RemoteAddr:       remoteIP,
		RemoteText:       remoteAddr,
		TimeLimitSeconds: cfg.Lim.TimeLimitSeconds,
		Cgroup:           cgroup,
	})

	return pid, nil
}

// attachCgroup creates the child's cgroup keyed by its host pid, adds
// the child, and applies the configured ceilings. Done here rather
// than inside the child because cgroup.procs takes pids as the host
// pid table knows them, and a child created with CLONE_NEWPID no
// longer sees that value from its own getpid(2).
func attachCgroup(pid int, lim config.CgroupLimits) (*linux.Cgroup, error) {
	path := linux.GetCgroupPath(pid)
	linux.EnsureParentControllers(path)

	cg, err := linux.NewCgroup(path)
	if err != nil {
		return nil, fmt.Errorf("create cgroup: %w", err)
	}
	if err := cg.AddProcess(pid); err != nil {
		return cg, fmt.Errorf("add to cgroup: %w", err)
	}
	if err := cg.ApplyLimits(lim); err != nil {
		return cg, fmt.Errorf("apply cgroup limits: %w", err)
	}
	return cg, nil
}

func remoteHost(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return net.ParseIP(host)
}
