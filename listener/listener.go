// Package listener binds the jailer's dual-stack TCP socket and
// accepts incoming connections for LISTEN_TCP mode.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/sirupsen/logrus"

	cerrors "njail-go/errors"
)

// Listener wraps a TCP listener bound to in6addr_any with address reuse.
type Listener struct {
	ln  *net.TCPListener
	log *logrus.Logger
}

// Listen validates port and binds an IPv6 TCP socket on it with
// SO_REUSEADDR. 1 <= port <= 65535; any other value is a configuration
// error.
func Listen(port int, log *logrus.Logger) (*Listener, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", cerrors.ErrInvalidPort, port)
	}

	cfg := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	addr := fmt.Sprintf("[::]:%d", port)
	ln, err := cfg.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("unexpected listener type %T", ln)
	}

	return &Listener{ln: tcpLn, log: log}, nil
}

// Accept blocks for the next connection. Any accept failure besides
// the listener being closed is logged and the accept retried; the
// caller only ever sees a non-nil error once ctx is done or the
// listener has been closed.
func (l *Listener) Accept(ctx context.Context) (*net.TCPConn, string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		conn, err := l.ln.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, "", err
			}
			l.log.WithError(err).Warn("accept: retrying")
			continue
		}

		if err := setCork(conn); err != nil {
			l.log.WithError(err).Debug("accept: TCP_CORK not set")
		}

		remote := conn.RemoteAddr().(*net.TCPAddr).String()
		return conn, remote, nil
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close closes the listening socket.
func (l *Listener) Close() error { return l.ln.Close() }
