package jail

import (
	"syscall"

	"github.com/sirupsen/logrus"

	"njail-go/accounting"
)

// Shutdown sends SIGKILL to every live child and best-effort destroys
// each one's cgroup. It does not wait for the kernel to reap them --
// the caller is exiting and the kernel reparents orphans to init.
func Shutdown(table *accounting.Table, log *logrus.Logger) {
	for _, rec := range table.Snapshot() {
		if err := syscall.Kill(rec.PID, syscall.SIGKILL); err != nil {
			log.WithField("pid", rec.PID).WithError(err).Debug("kill on shutdown failed")
		}
		if rec.Cgroup != nil {
			_ = rec.Cgroup.Destroy()
		}
	}
}
