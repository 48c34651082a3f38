package jail

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// setUid sets the user ID.
func setUid(uid int) error { return syscall.Setuid(uid) }

// setGid sets the group ID.
func setGid(gid int) error { return syscall.Setgid(gid) }

// setGroups sets supplementary group IDs; a nil/empty list clears them.
func setGroups(gids []int) error { return syscall.Setgroups(gids) }

// execProcess replaces the calling process image; it does not return
// on success.
func execProcess(path string, args []string, env []string) error {
	return syscall.Exec(path, args, env)
}

// dup2 duplicates oldfd onto newfd, closing newfd first if open.
func dup2(oldfd uintptr, newfd int) error {
	return unix.Dup2(int(oldfd), newfd)
}

// closeOnExecAllExcept sets FD_CLOEXEC on every open descriptor in
// [0, maxScanFD) except those named in keep.
func closeOnExecAllExcept(keep ...int) error {
	kept := make(map[int]bool, len(keep))
	for _, fd := range keep {
		kept[fd] = true
	}

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return fmt.Errorf("read /proc/self/fd: %w", err)
	}

	for _, e := range entries {
		var fd int
		if _, err := fmt.Sscanf(e.Name(), "%d", &fd); err != nil {
			continue
		}
		if kept[fd] {
			continue
		}
		unix.CloseOnExec(fd)
	}
	return nil
}
