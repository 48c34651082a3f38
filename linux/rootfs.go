// Package linux provides rootfs and mount handling.
package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"njail-go/config"
)

// Mount propagation flags
const (
	MS_PRIVATE     = syscall.MS_PRIVATE
	MS_SHARED      = syscall.MS_SHARED
	MS_SLAVE       = syscall.MS_SLAVE
	MS_UNBINDABLE  = syscall.MS_UNBINDABLE
	MS_REC         = syscall.MS_REC
	MS_BIND        = syscall.MS_BIND
	MS_MOVE        = syscall.MS_MOVE
	MS_RDONLY      = syscall.MS_RDONLY
	MS_NOSUID      = syscall.MS_NOSUID
	MS_NODEV       = syscall.MS_NODEV
	MS_NOEXEC      = syscall.MS_NOEXEC
	MS_REMOUNT     = syscall.MS_REMOUNT
	MS_STRICTATIME = syscall.MS_STRICTATIME
	MS_RELATIME    = syscall.MS_RELATIME
	MS_NOATIME     = syscall.MS_NOATIME
)

// mountOptionFlags maps mount option strings to flags.
var mountOptionFlags = map[string]uintptr{
	"ro":          MS_RDONLY,
	"rw":          0,
	"nosuid":      MS_NOSUID,
	"suid":        0,
	"nodev":       MS_NODEV,
	"dev":         0,
	"noexec":      MS_NOEXEC,
	"exec":        0,
	"sync":        syscall.MS_SYNCHRONOUS,
	"async":       0,
	"remount":     MS_REMOUNT,
	"bind":        MS_BIND,
	"rbind":       MS_BIND | MS_REC,
	"private":     MS_PRIVATE,
	"rprivate":    MS_PRIVATE | MS_REC,
	"shared":      MS_SHARED,
	"rshared":     MS_SHARED | MS_REC,
	"slave":       MS_SLAVE,
	"rslave":      MS_SLAVE | MS_REC,
	"unbindable":  MS_UNBINDABLE,
	"runbindable": MS_UNBINDABLE | MS_REC,
	"relatime":    MS_RELATIME,
	"norelatime":  0,
	"strictatime": MS_STRICTATIME,
	"noatime":     MS_NOATIME,
}

// SetupRootfs implements the mountFS step: it bind-mounts the chroot
// onto itself so pivot_root accepts it, lays down the bind and tmpfs
// mounts in their declared order, pivots into the chroot and finally
// remounts root read-only unless fs.IsRootRW.
func SetupRootfs(fs config.Filesystem) error {
	if fs.Chroot == "" {
		return fmt.Errorf("no chroot path specified")
	}

	rootfs, err := filepath.Abs(fs.Chroot)
	if err != nil {
		return fmt.Errorf("abs path: %w", err)
	}

	if err := makePrivate("/"); err != nil {
		fmt.Printf("[rootfs] warning: make private: %v\n", err)
	}

	if err := syscall.Mount(rootfs, rootfs, "", MS_BIND|MS_REC, ""); err != nil {
		return fmt.Errorf("bind mount rootfs: %w", err)
	}

	if err := setupMounts(fs, rootfs); err != nil {
		return fmt.Errorf("setup mounts: %w", err)
	}

	if err := pivotRoot(rootfs); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}

	if err := SetupDefaultDevices(); err != nil {
		return fmt.Errorf("create device nodes: %w", err)
	}

	if !fs.IsRootRW {
		if err := syscall.Mount("", "/", "", MS_REMOUNT|MS_BIND|MS_RDONLY, ""); err != nil {
			return fmt.Errorf("remount readonly: %w", err)
		}
	}

	return nil
}

// makePrivate makes the mount tree private.
func makePrivate(path string) error {
	return syscall.Mount("", path, "", MS_REC|MS_PRIVATE, "")
}

// pivotRoot performs pivot_root to change the root filesystem.
func pivotRoot(rootfs string) error {
	oldRoot := filepath.Join(rootfs, ".old_root")
	if err := os.MkdirAll(oldRoot, 0700); err != nil {
		return fmt.Errorf("mkdir old_root: %w", err)
	}

	if err := syscall.PivotRoot(rootfs, oldRoot); err != nil {
		return chrootFallback(rootfs)
	}

	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}

	oldRoot = "/.old_root"
	if err := syscall.Unmount(oldRoot, syscall.MNT_DETACH); err != nil {
		return fmt.Errorf("unmount old root: %w", err)
	}

	os.RemoveAll(oldRoot)

	return nil
}

// chrootFallback uses chroot when pivot_root fails (e.g., rootless).
func chrootFallback(rootfs string) error {
	if err := syscall.Chroot(rootfs); err != nil {
		return fmt.Errorf("chroot: %w", err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}
	return nil
}

// setupMounts lays down the ordered bind mounts, then the ordered
// tmpfs mounts, each at the same path inside rootfs as it has outside
// it. Bind mounts are always read-only; a missing bind source is
// skipped with a warning rather than failing the whole jail.
func setupMounts(fs config.Filesystem, rootfs string) error {
	for _, src := range fs.BindMounts {
		dest, err := SecureJoin(rootfs, src)
		if err != nil {
			return fmt.Errorf("bind mount path %q: %w", src, err)
		}

		srcInfo, err := os.Stat(src)
		if err != nil {
			fmt.Printf("[rootfs] warning: bind source %s not found: %v\n", src, err)
			continue
		}

		if srcInfo.IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("mkdir %s: %w", dest, err)
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return fmt.Errorf("mkdir parent %s: %w", filepath.Dir(dest), err)
			}
			if _, err := os.Stat(dest); os.IsNotExist(err) {
				f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("create file %s: %w", dest, err)
				}
				f.Close()
			}
		}

		if err := syscall.Mount(src, dest, "", MS_BIND, ""); err != nil {
			return fmt.Errorf("bind mount %s: %w", dest, err)
		}
		if err := syscall.Mount(src, dest, "", MS_BIND|MS_REMOUNT|MS_RDONLY, ""); err != nil {
			return fmt.Errorf("remount readonly %s: %w", dest, err)
		}
	}

	for _, path := range fs.TmpfsMounts {
		dest, err := SecureJoin(rootfs, path)
		if err != nil {
			return fmt.Errorf("tmpfs mount path %q: %w", path, err)
		}
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dest, err)
		}
		if err := syscall.Mount("tmpfs", dest, "tmpfs", MS_NOSUID, ""); err != nil {
			return fmt.Errorf("mount tmpfs %s: %w", dest, err)
		}
	}

	return nil
}

// parseMountOptions parses mount option strings into flags and a data
// string, retained for any future caller that needs raw mount-flag
// parsing beyond the bind/tmpfs lists above.
func parseMountOptions(options []string) (uintptr, string) {
	var flags uintptr
	var dataOpts []string

	for _, opt := range options {
		if flag, ok := mountOptionFlags[opt]; ok {
			flags |= flag
		} else if strings.Contains(opt, "=") || !isKnownOption(opt) {
			dataOpts = append(dataOpts, opt)
		}
	}

	return flags, strings.Join(dataOpts, ",")
}

// hasOption checks if an option is in the list.
func hasOption(options []string, opt string) bool {
	for _, o := range options {
		if o == opt {
			return true
		}
	}
	return false
}

// isKnownOption checks if an option is a known mount flag.
func isKnownOption(opt string) bool {
	_, ok := mountOptionFlags[opt]
	return ok
}

// MountProc mounts procfs at /proc.
func MountProc() error {
	if err := os.MkdirAll("/proc", 0755); err != nil {
		return err
	}
	return syscall.Mount("proc", "/proc", "proc", MS_NOSUID|MS_NOEXEC|MS_NODEV, "")
}

// SetupDefaultDevices creates the standard jailed device nodes
// directly on the live filesystem (post pivot_root, so paths resolve
// inside the jail without a rootfs prefix).
func SetupDefaultDevices() error {
	return CreateAllDevices(DefaultDevices(), "")
}

// SetupDevSymlinks creates standard /dev symlinks.
func SetupDevSymlinks() error {
	symlinks := map[string]string{
		"/dev/fd":     "/proc/self/fd",
		"/dev/stdin":  "/proc/self/fd/0",
		"/dev/stdout": "/proc/self/fd/1",
		"/dev/stderr": "/proc/self/fd/2",
	}

	for link, target := range symlinks {
		os.Remove(link)
		if err := os.Symlink(target, link); err != nil {
			fmt.Printf("[dev] warning: symlink %s: %v\n", link, err)
		}
	}

	return nil
}

// SetupDevPts mounts devpts at /dev/pts.
func SetupDevPts() error {
	if err := os.MkdirAll("/dev/pts", 0755); err != nil {
		return err
	}
	return syscall.Mount("devpts", "/dev/pts", "devpts",
		MS_NOSUID|MS_NOEXEC,
		"newinstance,ptmxmode=0666,mode=0620")
}

// SecureJoin joins unsafePath onto base the way a chroot-restricted
// program would resolve it: each path component is walked in turn,
// symlinks are resolved and clamped back under base the instant they
// would otherwise cross it, and ".." components can never climb above
// base. The returned path has not itself been opened, so callers that
// need atomicity against a concurrently-replaced component should
// still open with O_NOFOLLOW.
func SecureJoin(base, unsafePath string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("secure join: empty base")
	}

	base = filepath.Clean(base)
	unsafePath = filepath.Clean("/" + unsafePath)

	const maxSymlinks = 40
	linksFollowed := 0

	var resolved string
	remaining := unsafePath

	for remaining != "" && remaining != "/" {
		remaining = strings.TrimPrefix(remaining, "/")
		i := strings.IndexByte(remaining, '/')
		var component string
		if i < 0 {
			component, remaining = remaining, ""
		} else {
			component, remaining = remaining[:i], remaining[i:]
		}

		if component == "" || component == "." {
			continue
		}
		if component == ".." {
			resolved = filepath.Dir(resolved)
			if resolved == "." {
				resolved = ""
			}
			continue
		}

		candidate := filepath.Join(resolved, component)
		fullCandidate := filepath.Join(base, candidate)

		fi, err := os.Lstat(fullCandidate)
		if err != nil {
			// Component doesn't exist yet (e.g. the final path segment
			// for a file we're about to create); nothing left to
			// resolve through, so just keep it.
			resolved = candidate
			continue
		}

		if fi.Mode()&os.ModeSymlink != 0 {
			linksFollowed++
			if linksFollowed > maxSymlinks {
				return "", fmt.Errorf("secure join: too many symlinks resolving %q", unsafePath)
			}
			target, err := os.Readlink(fullCandidate)
			if err != nil {
				return "", fmt.Errorf("secure join: readlink %q: %w", fullCandidate, err)
			}
			if filepath.IsAbs(target) {
				// Absolute symlinks are rooted at base, not at the
				// real filesystem root.
				remaining = filepath.Clean("/"+target) + remaining
				resolved = ""
			} else {
				remaining = filepath.Clean("/"+filepath.Join(filepath.Dir(candidate), target)) + remaining
			}
			continue
		}

		resolved = candidate
	}

	return filepath.Join(base, resolved), nil
}
