// Package config defines the jailer's configuration record: every knob
// accepted on the command line, frozen after startup and read-only from
// then on by every other package.
package config

import (
	"fmt"
	"os/user"
	"strconv"
)

// Mode selects the top-level driver loop.
type Mode int

const (
	// ModeListenTCP accepts connections forever, jailing each one.
	ModeListenTCP Mode = iota
	// ModeStandaloneOnce jails the command once and exits with its status.
	ModeStandaloneOnce
	// ModeStandaloneRerun jails the command, waits, and repeats forever.
	ModeStandaloneRerun
)

func (m Mode) String() string {
	switch m {
	case ModeListenTCP:
		return "listen"
	case ModeStandaloneOnce:
		return "run"
	case ModeStandaloneRerun:
		return "rerun"
	default:
		return "unknown"
	}
}

// Personality bits, mirroring the kernel's personality(2) flags this
// jailer is allowed to toggle.
const (
	PersonaAddrCompatLayout uint32 = 0x0200000
	PersonaMmapPageZero     uint32 = 0x0100000
	PersonaReadImpliesExec  uint32 = 0x0400000
	PersonaAddrLimit3GB     uint32 = 0x8000000
	PersonaAddrNoRandomize  uint32 = 0x0040000
)

// Namespaces lists the six namespace toggles. A namespace is created
// (isolated) when its field is true.
type Namespaces struct {
	Net   bool
	User  bool
	Mount bool
	Pid   bool
	Ipc   bool
	Uts   bool
}

// RlimitSpec is one of: an absolute ceiling, "keep current soft", or
// "raise to current hard" -- mirroring the CLI's max/def/<int> grammar.
type RlimitSpec struct {
	Kind  RlimitKind
	Value uint64
}

// RlimitKind distinguishes the three forms an rlimit flag value can take.
type RlimitKind int

const (
	RlimitAbsolute RlimitKind = iota
	RlimitKeepSoft
	RlimitMax
)

// ParseRlimitSpec parses "max", "def", or a non-negative integer, which
// is scaled by unit before being stored (1024*1024 for the MiB-denominated
// limits -- as/core/fsize/stack; 1 for the raw-count ones -- cpu/nofile/
// nproc), matching cmdlineParseRLimit's per-resource multiplier.
func ParseRlimitSpec(s string, unit uint64) (RlimitSpec, error) {
	switch s {
	case "max":
		return RlimitSpec{Kind: RlimitMax}, nil
	case "def", "":
		return RlimitSpec{Kind: RlimitKeepSoft}, nil
	default:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return RlimitSpec{}, fmt.Errorf("invalid rlimit value %q: %w", s, err)
		}
		return RlimitSpec{Kind: RlimitAbsolute, Value: v * unit}, nil
	}
}

// Limits holds the seven POSIX resource ceilings plus the wall-clock
// time limit.
type Limits struct {
	TimeLimitSeconds uint64 // 0 = unlimited

	AS     RlimitSpec
	Core   RlimitSpec
	CPU    RlimitSpec
	FSize  RlimitSpec
	NoFile RlimitSpec
	NProc  RlimitSpec
	Stack  RlimitSpec
}

// CgroupLimits is the supplemented cgroup-v2 resource ceiling, applied
// alongside rlimits when any field is non-zero.
type CgroupLimits struct {
	MemoryMaxBytes int64
	PidsMax        int64
	CPUMsPerSec    int64
}

// Enabled reports whether any cgroup ceiling was requested.
func (c CgroupLimits) Enabled() bool {
	return c.MemoryMaxBytes > 0 || c.PidsMax > 0 || c.CPUMsPerSec > 0
}

// Filesystem describes how the child's root directory is reshaped.
type Filesystem struct {
	Chroot      string
	IsRootRW    bool
	BindMounts  []string // ordered, read-only; host paths, mounted at the same path inside chroot
	TmpfsMounts []string // ordered, relative to chroot
}

// Net describes the listening socket and optional virtual interface
// attachment.
type Net struct {
	Port           int
	MaxConnsPerIP  int
	MacvtapIface   string
	MacvlanIface   string
}

// HookSpec is one connection-lifecycle hook: a command plus a timeout.
// Supplemented feature, has no OCI analogue.
type HookSpec struct {
	Command []string
	Timeout uint64 // seconds, 0 = no timeout
}

// Enabled reports whether the hook was configured.
func (h HookSpec) Enabled() bool { return len(h.Command) > 0 }

// Hooks groups the two supplemented lifecycle hook points.
type Hooks struct {
	PreFork  HookSpec
	PostReap HookSpec
}

// Configuration is the immutable-after-startup jailer configuration.
type Configuration struct {
	Mode Mode

	User     string
	Group    string
	Hostname string

	FS  Filesystem
	NS  Namespaces
	Lim Limits
	Cg  CgroupLimits
	Net Net

	Daemonize    bool
	Verbose      bool
	KeepEnv      bool
	KeepCaps     bool
	ApplySandbox bool
	Silent       bool

	Personality uint32

	Hooks Hooks

	LogPath string

	// Command is argv for the jailed program; Command[0] is the
	// executable.
	Command []string
}

// Validate enforces the configuration-error boundary conditions.
func (c *Configuration) Validate() error {
	if len(c.Command) == 0 {
		return fmt.Errorf("no command given")
	}
	if c.Mode == ModeListenTCP {
		if c.Net.Port < 1 || c.Net.Port > 65535 {
			return fmt.Errorf("invalid port %d", c.Net.Port)
		}
	}
	if _, err := ResolveUser(c.User); err != nil {
		return fmt.Errorf("user %q: %w", c.User, err)
	}
	if _, err := ResolveGroup(c.Group); err != nil {
		return fmt.Errorf("group %q: %w", c.Group, err)
	}
	return nil
}

// ResolveUser resolves a name-or-numeric-id user spec to a uid.
func ResolveUser(spec string) (int, error) {
	if spec == "" {
		spec = "nobody"
	}
	if u, err := user.Lookup(spec); err == nil {
		return strconv.Atoi(u.Uid)
	}
	uid, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("unknown user %q", spec)
	}
	return uid, nil
}

// ResolveGroup resolves a name-or-numeric-id group spec to a gid.
func ResolveGroup(spec string) (int, error) {
	if spec == "" {
		spec = "nobody"
	}
	if g, err := user.LookupGroup(spec); err == nil {
		return strconv.Atoi(g.Gid)
	}
	gid, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("unknown group %q", spec)
	}
	return gid, nil
}
