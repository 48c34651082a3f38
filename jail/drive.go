package jail

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"njail-go/accounting"
	"njail-go/config"
	"njail-go/hooklifecycle"
	"njail-go/listener"
)

// reapTickInterval upper-bounds the LISTEN_TCP reaper cadence; SIGCHLD
// wakes the loop to reap sooner, but the tick is the backstop for
// wall-clock time-limit enforcement when no child has exited recently.
const reapTickInterval = 1 * time.Second

// Drive runs the mode loop selected by cfg.Mode. LISTEN_TCP and
// STANDALONE_RERUN run until ctx is cancelled or an error ends the loop,
// then Shutdown runs. STANDALONE_ONCE exits the process with the child's
// status once that child has been reaped, so Shutdown does not run in
// that mode.
func Drive(ctx context.Context, cfg *config.Configuration, log *logrus.Logger) error {
	table := accounting.New()
	defer Shutdown(table, log)

	switch cfg.Mode {
	case config.ModeListenTCP:
		return driveListenTCP(ctx, cfg, table, log)
	case config.ModeStandaloneOnce:
		return driveStandalone(ctx, cfg, table, log, false)
	case config.ModeStandaloneRerun:
		return driveStandalone(ctx, cfg, table, log, true)
	default:
		return errors.New("unknown mode")
	}
}

func driveListenTCP(ctx context.Context, cfg *config.Configuration, table *accounting.Table, log *logrus.Logger) error {
	ln, err := listener.Listen(cfg.Net.Port, log)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.WithField("port", cfg.Net.Port).Info("listening")

	ticker := time.NewTicker(reapTickInterval)
	defer ticker.Stop()

	sigchld := make(chan os.Signal, 1)
	signal.Notify(sigchld, syscall.SIGCHLD)
	defer signal.Stop(sigchld)

	acceptResult := make(chan acceptOutcome, 1)
	go acceptLoop(ctx, ln, acceptResult)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			Reap(table, cfg.Hooks.PostReap, log)
			EnforceTimeLimits(table, log)
		case <-sigchld:
			Reap(table, cfg.Hooks.PostReap, log)
		case out := <-acceptResult:
			if out.err != nil {
				if errors.Is(out.err, net.ErrClosed) {
					return nil
				}
				return out.err
			}
			handleAccept(cfg, out.conn, out.remote, table, log)
			Reap(table, cfg.Hooks.PostReap, log)
			go acceptLoop(ctx, ln, acceptResult)
		}
	}
}

type acceptOutcome struct {
	conn   *net.TCPConn
	remote string
	err    error
}

func acceptLoop(ctx context.Context, ln *listener.Listener, out chan<- acceptOutcome) {
	conn, remote, err := ln.Accept(ctx)
	out <- acceptOutcome{conn: conn, remote: remote, err: err}
}

func handleAccept(cfg *config.Configuration, conn *net.TCPConn, remote string, table *accounting.Table, log *logrus.Logger) {
	defer conn.Close()

	addr := remoteHost(remote)
	if !table.Admit(addr, cfg.Net.MaxConnsPerIP) {
		log.WithField("remote", remote).Warn("connection rejected: max_conns_per_ip limit reached")
		return
	}

	if cfg.Hooks.PreFork.Enabled() {
		state := hooklifecycle.PreForkState{RemoteAddr: remote}
		if err := hooklifecycle.RunPreFork(cfg.Hooks.PreFork, state); err != nil {
			log.WithField("remote", remote).WithError(err).Warn("pre-fork hook failed")
		}
	}

	file, err := conn.File()
	if err != nil {
		log.WithField("remote", remote).WithError(err).Warn("could not derive fd from connection")
		return
	}
	defer file.Close()

	io := Stdio{Stdin: file, Stdout: file, Stderr: file}
	pid, err := Spawn(cfg, io, remote, table, log)
	if err != nil {
		log.WithField("remote", remote).WithError(err).Warn("spawn failed")
		return
	}
	log.WithField("pid", pid).WithField("remote", remote).Info("jailed child started")
}

func driveStandalone(ctx context.Context, cfg *config.Configuration, table *accounting.Table, log *logrus.Logger, rerun bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		io := Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
		pid, err := Spawn(cfg, io, "", table, log)
		if err != nil {
			return err
		}

		ws, err := wait(pid)
		if err != nil {
			log.WithField("pid", pid).WithError(err).Warn("wait failed")
		}
		finalize(table, cfg.Hooks.PostReap, log, pid, ws)

		if !rerun {
			status := 1
			if ws.Exited() {
				status = ws.ExitStatus()
			}
			os.Exit(status)
		}
	}
}

// wait blocks for a specific pid's exit (STANDALONE modes run one
// child at a time, so a blocking wait is acceptable here, unlike the
// LISTEN_TCP reaper which must never block).
func wait(pid int) (syscall.WaitStatus, error) {
	var ws syscall.WaitStatus
	for {
		got, err := syscall.Wait4(pid, &ws, 0, nil)
		if err != nil {
			return ws, err
		}
		if got == pid {
			return ws, nil
		}
	}
}
