// Package linux provides device node management.
package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Device describes a character device node to create inside the
// jailed root, independent of any external config format.
type Device struct {
	Path     string
	Major    int64
	Minor    int64
	FileMode os.FileMode
}

// DefaultDevices returns the fixed set of device nodes every jailed
// child gets: /dev/null, /dev/zero, /dev/full, /dev/random,
// /dev/urandom and /dev/tty.
func DefaultDevices() []Device {
	const mode = os.FileMode(0666)
	return []Device{
		{Path: "/dev/null", Major: 1, Minor: 3, FileMode: mode},
		{Path: "/dev/zero", Major: 1, Minor: 5, FileMode: mode},
		{Path: "/dev/full", Major: 1, Minor: 7, FileMode: mode},
		{Path: "/dev/random", Major: 1, Minor: 8, FileMode: mode},
		{Path: "/dev/urandom", Major: 1, Minor: 9, FileMode: mode},
		{Path: "/dev/tty", Major: 5, Minor: 0, FileMode: mode},
	}
}

// CreateAllDevices creates every device node in devices under rootfs
// (or on the live filesystem if rootfs is empty).
func CreateAllDevices(devices []Device, rootfs string) error {
	for _, dev := range devices {
		path := dev.Path
		if rootfs != "" {
			var err error
			path, err = SecureJoin(rootfs, dev.Path)
			if err != nil {
				return fmt.Errorf("invalid device path %q: %w", dev.Path, err)
			}
		}

		if err := createDeviceNode(path, dev); err != nil {
			return fmt.Errorf("create device %s: %w", dev.Path, err)
		}
	}
	return nil
}

// createDeviceNode creates a single character device node at path.
func createDeviceNode(path string, dev Device) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	mode := uint32(syscall.S_IFCHR) | uint32(dev.FileMode)
	devNum := int((dev.Major << 8) | dev.Minor)

	os.Remove(path)

	if err := syscall.Mknod(path, mode, devNum); err != nil {
		return fmt.Errorf("mknod: %w", err)
	}

	if err := os.Chown(path, 0, 0); err != nil {
		return fmt.Errorf("chown: %w", err)
	}

	return nil
}

// SetupDevTmpfs mounts a tmpfs on /dev inside rootfs and populates it
// with the default device nodes plus /dev/pts, /dev/shm, /dev/ptmx and
// the standard /proc/self/fd symlinks.
func SetupDevTmpfs(rootfs string, devices []Device) error {
	devPath := "/dev"
	if rootfs != "" {
		devPath = filepath.Join(rootfs, "dev")
	}

	if err := os.MkdirAll(devPath, 0755); err != nil {
		return fmt.Errorf("mkdir /dev: %w", err)
	}

	if err := syscall.Mount("tmpfs", devPath, "tmpfs",
		syscall.MS_NOSUID|syscall.MS_STRICTATIME,
		"mode=755,size=65536k"); err != nil {
		return fmt.Errorf("mount tmpfs on /dev: %w", err)
	}

	allDevices := devices
	if len(allDevices) == 0 {
		allDevices = DefaultDevices()
	}

	for _, dev := range allDevices {
		path := filepath.Join(devPath, filepath.Base(dev.Path))
		if err := createDeviceNode(path, dev); err != nil {
			fmt.Printf("[dev] warning: %v\n", err)
		}
	}

	ptsPath := filepath.Join(devPath, "pts")
	if err := os.MkdirAll(ptsPath, 0755); err != nil {
		return fmt.Errorf("mkdir /dev/pts: %w", err)
	}

	if err := syscall.Mount("devpts", ptsPath, "devpts",
		syscall.MS_NOSUID|syscall.MS_NOEXEC,
		"newinstance,ptmxmode=0666,mode=0620"); err != nil {
		fmt.Printf("[dev] warning: mount devpts: %v\n", err)
	}

	ptmxPath := filepath.Join(devPath, "ptmx")
	os.Remove(ptmxPath)
	if err := os.Symlink("pts/ptmx", ptmxPath); err != nil {
		dev := Device{Path: ptmxPath, Major: 5, Minor: 2, FileMode: 0666}
		createDeviceNode(ptmxPath, dev)
	}

	shmPath := filepath.Join(devPath, "shm")
	if err := os.MkdirAll(shmPath, 1777); err != nil {
		return fmt.Errorf("mkdir /dev/shm: %w", err)
	}
	if err := syscall.Mount("shm", shmPath, "tmpfs",
		syscall.MS_NOSUID|syscall.MS_NOEXEC|syscall.MS_NODEV,
		"mode=1777,size=65536k"); err != nil {
		fmt.Printf("[dev] warning: mount shm: %v\n", err)
	}

	symlinks := map[string]string{
		"fd":     "/proc/self/fd",
		"stdin":  "/proc/self/fd/0",
		"stdout": "/proc/self/fd/1",
		"stderr": "/proc/self/fd/2",
	}

	for name, target := range symlinks {
		linkPath := filepath.Join(devPath, name)
		os.Remove(linkPath)
		os.Symlink(target, linkPath)
	}

	return nil
}
