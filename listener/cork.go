package listener

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// setCork enables TCP_CORK so the kernel coalesces small writes until
// the jailed program flushes or the connection closes.
func setCork(conn *net.TCPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_CORK, 1)
	})
	if err != nil {
		return err
	}
	if sockErr != nil {
		return fmt.Errorf("setsockopt TCP_CORK: %w", sockErr)
	}
	return nil
}
