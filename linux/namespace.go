// Package linux provides Linux-specific jail-construction primitives:
// namespace flags, capability dropping, seccomp filtering, cgroup-v2
// resource confinement, rootfs reshaping and device node creation.
package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"njail-go/config"
)

// Linux namespace clone flags.
const (
	CLONE_NEWNS     = syscall.CLONE_NEWNS   // Mount namespace
	CLONE_NEWUTS    = syscall.CLONE_NEWUTS  // UTS namespace (hostname)
	CLONE_NEWIPC    = syscall.CLONE_NEWIPC  // IPC namespace
	CLONE_NEWPID    = syscall.CLONE_NEWPID  // PID namespace
	CLONE_NEWNET    = syscall.CLONE_NEWNET  // Network namespace
	CLONE_NEWUSER   = syscall.CLONE_NEWUSER // User namespace
	CLONE_NEWCGROUP = 0x02000000            // Cgroup namespace (not in syscall pkg)
)

// NamespaceFlags builds the clone flag bitmask requested by the six
// namespace toggles.
func NamespaceFlags(ns config.Namespaces) uintptr {
	var flags uintptr
	if ns.Net {
		flags |= CLONE_NEWNET
	}
	if ns.User {
		flags |= CLONE_NEWUSER
	}
	if ns.Mount {
		flags |= CLONE_NEWNS
	}
	if ns.Pid {
		flags |= CLONE_NEWPID
	}
	if ns.Ipc {
		flags |= CLONE_NEWIPC
	}
	if ns.Uts {
		flags |= CLONE_NEWUTS
	}
	return flags
}

// BuildSysProcAttr builds the SysProcAttr used to clone the jailed
// child, including uid/gid mappings when a user namespace is requested.
func BuildSysProcAttr(ns config.Namespaces, uid, gid int) (*syscall.SysProcAttr, error) {
	attr := &syscall.SysProcAttr{
		Cloneflags: NamespaceFlags(ns) | uintptr(syscall.SIGCHLD),
		Setsid:     true,
	}

	// Unshareflags re-privatizes the mount namespace after the initial
	// clone; skipped with a user namespace to avoid EPERM before the
	// uid/gid maps are written.
	if !ns.User {
		attr.Unshareflags = syscall.CLONE_NEWNS
	}

	if ns.User {
		attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: uid, Size: 1}}
		attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: gid, Size: 1}}
		attr.GidMappingsEnableSetgroups = false
	}

	return attr, nil
}

// WriteIDMappings writes a single-id uid/gid mapping to
// /proc/pid/{uid,gid}_map for a child that was cloned with CLONE_NEWUSER
// but whose mappings could not be supplied directly via SysProcAttr
// (e.g. when the orchestrator writes them externally after clone).
func WriteIDMappings(pid, containerID, hostID int) error {
	uidPath := filepath.Join("/proc", fmt.Sprint(pid), "uid_map")
	if err := os.WriteFile(uidPath, []byte(fmt.Sprintf("%d %d 1\n", containerID, hostID)), 0644); err != nil {
		return fmt.Errorf("write uid_map: %w", err)
	}

	setgroupsPath := filepath.Join("/proc", fmt.Sprint(pid), "setgroups")
	_ = os.WriteFile(setgroupsPath, []byte("deny"), 0644) // best effort, older kernels lack it

	gidPath := filepath.Join("/proc", fmt.Sprint(pid), "gid_map")
	if err := os.WriteFile(gidPath, []byte(fmt.Sprintf("%d %d 1\n", containerID, hostID)), 0644); err != nil {
		return fmt.Errorf("write gid_map: %w", err)
	}
	return nil
}

// SetHostname sets the hostname in the UTS namespace.
func SetHostname(hostname string) error {
	if hostname == "" {
		return nil
	}
	return syscall.Sethostname([]byte(hostname))
}

// SetDomainname sets the domain name in the UTS namespace.
func SetDomainname(domainname string) error {
	if domainname == "" {
		return nil
	}
	return syscall.Setdomainname([]byte(domainname))
}
