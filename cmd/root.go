// Package cmd implements the jailer's command-line surface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"njail-go/config"
	"njail-go/logging"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// flagSet mirrors config.Configuration's fields as cobra flag targets;
// buildConfiguration copies it into a config.Configuration after flag
// parsing.
type flagSet struct {
	chroot   string
	user     string
	group    string
	hostname string
	port     int
	maxConns int
	logPath  string
	timeLim  uint64

	daemon   bool
	verbose  bool
	keepEnv  bool
	keepCaps bool
	rw       bool
	silent   bool

	rlimitAS     string
	rlimitCore   string
	rlimitCPU    string
	rlimitFSize  string
	rlimitNoFile string
	rlimitNProc  string
	rlimitStack  string

	personaAddrCompatLayout bool
	personaMmapPageZero     bool
	personaReadImpliesExec  bool
	personaAddrLimit3GB     bool
	personaAddrNoRandomize  bool

	disableNewUser bool
	disableNewNS   bool
	disableNewPID  bool
	disableNewIPC  bool
	disableNewUTS  bool
	disableNewNet  bool

	disableSandbox bool

	bindMounts  []string
	tmpfsMounts []string

	macvtapIface string
	macvlanIface string

	cgroupMemMax     int64
	cgroupPidsMax    int64
	cgroupCPUMsPerSec int64

	hookPreFork  string
	hookPostReap string
	hookTimeout  uint64
}

func registerFlags(c *cobra.Command, f *flagSet) {
	flags := c.Flags()
	flags.StringVarP(&f.chroot, "chroot", "c", "/chroot", "jail root directory")
	flags.StringVarP(&f.user, "user", "u", "nobody", "target user name or uid")
	flags.StringVarP(&f.group, "group", "g", "nobody", "target group name or gid")
	flags.StringVarP(&f.hostname, "hostname", "H", "", "hostname inside the UTS namespace")
	flags.IntVarP(&f.port, "port", "p", 0, "TCP port to listen on")
	flags.IntVarP(&f.maxConns, "max_conns_per_ip", "i", 0, "max concurrent jails per remote address, 0 disables")
	flags.StringVarP(&f.logPath, "log", "l", "", "log file path, default stderr")
	flags.Uint64VarP(&f.timeLim, "time_limit", "t", 0, "wall-clock seconds before SIGKILL, 0 disables")

	flags.BoolVarP(&f.daemon, "daemon", "d", false, "recorded in the configuration; the supervisor does not detach and stays in the foreground")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "verbose logging")
	flags.BoolVarP(&f.keepEnv, "keep_env", "e", false, "keep the parent's environment in the child")
	flags.BoolVar(&f.keepCaps, "keep_caps", false, "retain the permitted capability set instead of dropping all")
	flags.BoolVar(&f.rw, "rw", false, "mount the chroot root read-write instead of read-only")
	flags.BoolVar(&f.silent, "silent", false, "redirect child fd 0/1/2 to /dev/null")

	flags.StringVar(&f.rlimitAS, "rlimit_as", "def", "address-space rlimit: max|def|MiB")
	flags.StringVar(&f.rlimitCore, "rlimit_core", "def", "core rlimit: max|def|MiB")
	flags.StringVar(&f.rlimitCPU, "rlimit_cpu", "def", "cpu-seconds rlimit: max|def|seconds")
	flags.StringVar(&f.rlimitFSize, "rlimit_fsize", "def", "file-size rlimit: max|def|MiB")
	flags.StringVar(&f.rlimitNoFile, "rlimit_nofile", "def", "open-files rlimit: max|def|count")
	flags.StringVar(&f.rlimitNProc, "rlimit_nproc", "def", "process-count rlimit: max|def|count")
	flags.StringVar(&f.rlimitStack, "rlimit_stack", "def", "stack rlimit: max|def|MiB")

	flags.BoolVar(&f.personaAddrCompatLayout, "persona_addr_compat_layout", false, "set ADDR_COMPAT_LAYOUT personality bit")
	flags.BoolVar(&f.personaMmapPageZero, "persona_mmap_page_zero", false, "set MMAP_PAGE_ZERO personality bit")
	flags.BoolVar(&f.personaReadImpliesExec, "persona_read_implies_exec", false, "set READ_IMPLIES_EXEC personality bit")
	flags.BoolVar(&f.personaAddrLimit3GB, "persona_addr_limit_3gb", false, "set ADDR_LIMIT_3GB personality bit")
	flags.BoolVar(&f.personaAddrNoRandomize, "persona_addr_no_randomize", false, "set ADDR_NO_RANDOMIZE personality bit")

	flags.BoolVar(&f.disableNewUser, "disable_clone_newuser", false, "do not create a new user namespace")
	flags.BoolVar(&f.disableNewNS, "disable_clone_newns", false, "do not create a new mount namespace")
	flags.BoolVar(&f.disableNewPID, "disable_clone_newpid", false, "do not create a new pid namespace")
	flags.BoolVar(&f.disableNewIPC, "disable_clone_newipc", false, "do not create a new ipc namespace")
	flags.BoolVar(&f.disableNewUTS, "disable_clone_newuts", false, "do not create a new uts namespace")
	flags.BoolVarP(&f.disableNewNet, "disable_clone_newnet", "N", false, "do not create a new network namespace")

	flags.BoolVar(&f.disableSandbox, "disable_sandbox", false, "skip the seccomp-bpf install step")

	flags.StringArrayVarP(&f.bindMounts, "bindmount", "B", nil, "host path bind-mounted read-only at the same path inside the chroot (repeatable)")
	flags.StringArrayVarP(&f.tmpfsMounts, "tmpfsmount", "T", nil, "tmpfs mount destination, relative to chroot (repeatable)")

	flags.StringVar(&f.macvtapIface, "net_macvtap", "", "master interface for a macvtap attachment")
	flags.StringVar(&f.macvlanIface, "net_macvlan", "", "master interface for a macvlan attachment")

	flags.Int64Var(&f.cgroupMemMax, "cgroup_mem_max", 0, "cgroup memory.max in bytes, 0 disables")
	flags.Int64Var(&f.cgroupPidsMax, "cgroup_pids_max", 0, "cgroup pids.max, 0 disables")
	flags.Int64Var(&f.cgroupCPUMsPerSec, "cgroup_cpu_ms_per_sec", 0, "cgroup cpu.max quota in ms per wall-clock second, 0 disables")

	flags.StringVar(&f.hookPreFork, "hook_pre_fork", "", "command run before each clone, JSON state on stdin")
	flags.StringVar(&f.hookPostReap, "hook_post_reap", "", "command run after each reap, JSON state on stdin")
	flags.Uint64Var(&f.hookTimeout, "hook_timeout", 5, "seconds before a hook command is killed")
}

// buildConfiguration resolves a flagSet plus the trailing command
// vector into a validated config.Configuration.
func buildConfiguration(f *flagSet, mode config.Mode, command []string) (*config.Configuration, error) {
	// as/core/fsize/stack are expressed in MiB on the command line;
	// cpu/nofile/nproc are raw counts, matching cmdlineParseRLimit's
	// per-resource multiplier.
	const mib = 1024 * 1024
	rlimitAS, err := config.ParseRlimitSpec(f.rlimitAS, mib)
	if err != nil {
		return nil, err
	}
	rlimitCore, err := config.ParseRlimitSpec(f.rlimitCore, mib)
	if err != nil {
		return nil, err
	}
	rlimitCPU, err := config.ParseRlimitSpec(f.rlimitCPU, 1)
	if err != nil {
		return nil, err
	}
	rlimitFSize, err := config.ParseRlimitSpec(f.rlimitFSize, mib)
	if err != nil {
		return nil, err
	}
	rlimitNoFile, err := config.ParseRlimitSpec(f.rlimitNoFile, 1)
	if err != nil {
		return nil, err
	}
	rlimitNProc, err := config.ParseRlimitSpec(f.rlimitNProc, 1)
	if err != nil {
		return nil, err
	}
	rlimitStack, err := config.ParseRlimitSpec(f.rlimitStack, mib)
	if err != nil {
		return nil, err
	}

	var persona uint32
	if f.personaAddrCompatLayout {
		persona |= config.PersonaAddrCompatLayout
	}
	if f.personaMmapPageZero {
		persona |= config.PersonaMmapPageZero
	}
	if f.personaReadImpliesExec {
		persona |= config.PersonaReadImpliesExec
	}
	if f.personaAddrLimit3GB {
		persona |= config.PersonaAddrLimit3GB
	}
	if f.personaAddrNoRandomize {
		persona |= config.PersonaAddrNoRandomize
	}

	cfg := &config.Configuration{
		Mode:     mode,
		User:     f.user,
		Group:    f.group,
		Hostname: f.hostname,
		FS: config.Filesystem{
			Chroot:      f.chroot,
			IsRootRW:    f.rw,
			BindMounts:  f.bindMounts,
			TmpfsMounts: f.tmpfsMounts,
		},
		NS: config.Namespaces{
			Net:   !f.disableNewNet,
			User:  !f.disableNewUser,
			Mount: !f.disableNewNS,
			Pid:   !f.disableNewPID,
			Ipc:   !f.disableNewIPC,
			Uts:   !f.disableNewUTS,
		},
		Lim: config.Limits{
			TimeLimitSeconds: f.timeLim,
			AS:               rlimitAS,
			Core:             rlimitCore,
			CPU:              rlimitCPU,
			FSize:            rlimitFSize,
			NoFile:           rlimitNoFile,
			NProc:            rlimitNProc,
			Stack:            rlimitStack,
		},
		Cg: config.CgroupLimits{
			MemoryMaxBytes: f.cgroupMemMax,
			PidsMax:        f.cgroupPidsMax,
			CPUMsPerSec:    f.cgroupCPUMsPerSec,
		},
		Net: config.Net{
			Port:          f.port,
			MaxConnsPerIP: f.maxConns,
			MacvtapIface:  f.macvtapIface,
			MacvlanIface:  f.macvlanIface,
		},
		Daemonize:    f.daemon,
		Verbose:      f.verbose,
		KeepEnv:      f.keepEnv,
		KeepCaps:     f.keepCaps,
		ApplySandbox: !f.disableSandbox,
		Silent:       f.silent,
		Personality:  persona,
		Hooks: config.Hooks{
			PreFork:  hookSpec(f.hookPreFork, f.hookTimeout),
			PostReap: hookSpec(f.hookPostReap, f.hookTimeout),
		},
		LogPath: f.logPath,
		Command: command,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func hookSpec(command string, timeout uint64) config.HookSpec {
	if command == "" {
		return config.HookSpec{}
	}
	return config.HookSpec{Command: []string{"/bin/sh", "-c", command}, Timeout: timeout}
}

// rootCmd is the base command for the jailer.
var rootCmd = &cobra.Command{
	Use:           "njail",
	Short:         "run an untrusted command inside a namespaced, resource-bounded jail",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// GetContext returns a context that cancels on SIGINT/SIGTERM.
func GetContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}

func setupLogging(f *flagSet) *logrus.Logger {
	level := logging.ParseLevel("info")
	if f.verbose {
		level = logging.ParseLevel("debug")
	}

	output := os.Stderr
	var file *os.File
	if f.logPath != "" {
		var err error
		file, err = os.OpenFile(f.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err == nil {
			output = file
		}
	}

	logger := logging.NewLogger(logging.Config{Level: level, Format: "text", Output: output})
	logging.SetDefault(logger)
	return logger
}
