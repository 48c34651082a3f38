package linux

import (
	"fmt"
	"syscall"

	"njail-go/config"
)

// rlimitResource pairs a Limits field with its kernel RLIMIT_* number.
type rlimitResource struct {
	name     string
	resource int
	spec     func(config.Limits) config.RlimitSpec
}

var rlimitResources = []rlimitResource{
	{"AS", syscall.RLIMIT_AS, func(l config.Limits) config.RlimitSpec { return l.AS }},
	{"CORE", syscall.RLIMIT_CORE, func(l config.Limits) config.RlimitSpec { return l.Core }},
	{"CPU", syscall.RLIMIT_CPU, func(l config.Limits) config.RlimitSpec { return l.CPU }},
	{"FSIZE", syscall.RLIMIT_FSIZE, func(l config.Limits) config.RlimitSpec { return l.FSize }},
	{"NOFILE", syscall.RLIMIT_NOFILE, func(l config.Limits) config.RlimitSpec { return l.NoFile }},
	{"NPROC", syscall.RLIMIT_NPROC, func(l config.Limits) config.RlimitSpec { return l.NProc }},
	{"STACK", syscall.RLIMIT_STACK, func(l config.Limits) config.RlimitSpec { return l.Stack }},
}

// ApplyRlimits implements the setLimits step's rlimit half: it resolves
// each of the seven RlimitSpecs against the process's current soft/hard
// ceiling and installs the result. RlimitKeepSoft leaves the resource
// untouched; RlimitMax raises the soft limit to the current hard limit;
// RlimitAbsolute sets both soft and hard to the given value.
func ApplyRlimits(lim config.Limits) error {
	for _, r := range rlimitResources {
		spec := r.spec(lim)

		var cur syscall.Rlimit
		if err := syscall.Getrlimit(r.resource, &cur); err != nil {
			return fmt.Errorf("getrlimit %s: %w", r.name, err)
		}

		var next syscall.Rlimit
		switch spec.Kind {
		case config.RlimitKeepSoft:
			continue
		case config.RlimitMax:
			next = syscall.Rlimit{Cur: cur.Max, Max: cur.Max}
		case config.RlimitAbsolute:
			next = syscall.Rlimit{Cur: spec.Value, Max: spec.Value}
		default:
			return fmt.Errorf("unknown rlimit kind %d for %s", spec.Kind, r.name)
		}

		if err := syscall.Setrlimit(r.resource, &next); err != nil {
			return fmt.Errorf("setrlimit %s: %w", r.name, err)
		}
	}
	return nil
}
