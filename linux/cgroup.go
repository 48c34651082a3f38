// Package linux provides cgroup v2 resource management.
package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"njail-go/config"
)

const cgroupRoot = "/sys/fs/cgroup"

// Cgroup represents a cgroup v2 control group.
type Cgroup struct {
	path string
}

// NewCgroup creates or opens a cgroup at the given path.
// Path should be relative to /sys/fs/cgroup (e.g., "runc-go/container-id").
func NewCgroup(cgroupPath string) (*Cgroup, error) {
	// Handle absolute paths or OCI-style paths
	var fullPath string
	if strings.HasPrefix(cgroupPath, "/") {
		fullPath = filepath.Join(cgroupRoot, cgroupPath)
	} else {
		fullPath = filepath.Join(cgroupRoot, cgroupPath)
	}

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		return nil, fmt.Errorf("create cgroup directory: %w", err)
	}

	return &Cgroup{path: fullPath}, nil
}

// Path returns the filesystem path of the cgroup.
func (c *Cgroup) Path() string {
	return c.path
}

// AddProcess adds a process to this cgroup.
func (c *Cgroup) AddProcess(pid int) error {
	procsPath := filepath.Join(c.path, "cgroup.procs")
	return os.WriteFile(procsPath, []byte(strconv.Itoa(pid)), 0644)
}

// ApplyLimits applies the supplemented cgroup-v2 resource ceiling
// (memory/pids/cpu) to the child's cgroup. Only fields that are set
// (non-zero) are written; the rest are left at their inherited default.
func (c *Cgroup) ApplyLimits(lim config.CgroupLimits) error {
	if lim.MemoryMaxBytes > 0 {
		path := filepath.Join(c.path, "memory.max")
		if err := os.WriteFile(path, []byte(strconv.FormatInt(lim.MemoryMaxBytes, 10)), 0644); err != nil {
			return fmt.Errorf("set memory.max: %w", err)
		}
	}

	if lim.PidsMax > 0 {
		path := filepath.Join(c.path, "pids.max")
		if err := os.WriteFile(path, []byte(strconv.FormatInt(lim.PidsMax, 10)), 0644); err != nil {
			return fmt.Errorf("set pids.max: %w", err)
		}
	}

	if lim.CPUMsPerSec > 0 {
		// cpu.max takes "<quota> <period>" in microseconds; one CPU-ms
		// per second of wall clock over a 1-second (1,000,000us) period.
		quotaUs := lim.CPUMsPerSec * 1000
		value := fmt.Sprintf("%d 1000000", quotaUs)
		path := filepath.Join(c.path, "cpu.max")
		if err := os.WriteFile(path, []byte(value), 0644); err != nil {
			return fmt.Errorf("set cpu.max: %w", err)
		}
	}

	return nil
}

// Destroy removes the cgroup.
func (c *Cgroup) Destroy() error {
	// Cgroup must be empty to remove
	return os.Remove(c.path)
}

// GetMemoryCurrent returns current memory usage.
func (c *Cgroup) GetMemoryCurrent() (int64, error) {
	data, err := os.ReadFile(filepath.Join(c.path, "memory.current"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// GetPidsCurrent returns current number of processes.
func (c *Cgroup) GetPidsCurrent() (int64, error) {
	data, err := os.ReadFile(filepath.Join(c.path, "pids.current"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// Freeze freezes all processes in the cgroup.
func (c *Cgroup) Freeze() error {
	path := filepath.Join(c.path, "cgroup.freeze")
	return os.WriteFile(path, []byte("1"), 0644)
}

// Thaw unfreezes all processes in the cgroup.
func (c *Cgroup) Thaw() error {
	path := filepath.Join(c.path, "cgroup.freeze")
	return os.WriteFile(path, []byte("0"), 0644)
}

// EnsureParentControllers enables controllers on parent cgroups.
func EnsureParentControllers(cgroupPath string) error {
	// Walk up from cgroupPath and enable controllers at each level
	parts := strings.Split(strings.Trim(cgroupPath, "/"), "/")
	current := cgroupRoot

	controllers := "+cpu +memory +pids +cpuset"

	for _, part := range parts[:len(parts)] {
		controlFile := filepath.Join(current, "cgroup.subtree_control")
		if err := os.WriteFile(controlFile, []byte(controllers), 0644); err != nil {
			// Best effort - some controllers might not be available
		}
		current = filepath.Join(current, part)
	}

	return nil
}

// GetCgroupPath returns the cgroup path for a jailed child, keyed by
// its pid under a jailer-owned parent cgroup.
func GetCgroupPath(childPID int) string {
	return filepath.Join("njail", strconv.Itoa(childPID))
}
