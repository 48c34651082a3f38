// Package accounting tracks the jailer's live children: one record per
// running child, inserted after clone and removed once the reaper has
// waited on it.
package accounting

import (
	"net"
	"sync"
	"time"

	"njail-go/linux"
)

// Record is the supervisor's bookkeeping entry for one live child.
type Record struct {
	PID int

	Start time.Time

	// RemoteAddr is the 16-byte (v4-mapped) peer address, or nil in
	// standalone mode.
	RemoteAddr net.IP
	RemoteText string

	TimeLimitSeconds uint64

	// Cgroup is the child's cgroup handle, nil unless cgroup
	// confinement was enabled for this child.
	Cgroup *linux.Cgroup
}

// deadline reports the wall-clock instant after which the record is
// eligible for SIGCONT+SIGKILL. A zero TimeLimitSeconds means no
// deadline.
func (r Record) deadline() (time.Time, bool) {
	if r.TimeLimitSeconds == 0 {
		return time.Time{}, false
	}
	return r.Start.Add(time.Duration(r.TimeLimitSeconds) * time.Second), true
}

// Expired reports whether the record's wall-clock time limit has
// elapsed as of now.
func (r Record) Expired(now time.Time) bool {
	dl, ok := r.deadline()
	return ok && !now.Before(dl)
}

// Table is the mutex-protected collection of live child records,
// keyed by pid. It is only ever touched by the supervisor loop; the
// child process never accesses it.
type Table struct {
	mu      sync.RWMutex
	records map[int]Record
}

// New returns an empty accounting table.
func New() *Table {
	return &Table{records: make(map[int]Record)}
}

// Insert adds a newly-forked child's record. Insert is a no-op for a
// pid already present (should not happen; a pid is only reused by the
// kernel after the original has been reaped and removed).
func (t *Table) Insert(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[rec.PID]; ok {
		return
	}
	t.records[rec.PID] = rec
}

// Remove deletes the record for pid, returning it and whether it was
// present. Called by the reaper once a child has been waited on.
func (t *Table) Remove(pid int) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[pid]
	if ok {
		delete(t.records, pid)
	}
	return rec, ok
}

// Get returns a copy of the record for pid, if present.
func (t *Table) Get(pid int) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[pid]
	return rec, ok
}

// Len reports the number of live records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Snapshot returns a copy of every live record, for the reaper to walk
// without holding the table lock across syscalls.
func (t *Table) Snapshot() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	return out
}

// CountByAddr returns the number of live records whose RemoteAddr
// byte-equals addr. Port is never considered.
func (t *Table) CountByAddr(addr net.IP) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.records {
		if rec.RemoteAddr.Equal(addr) {
			n++
		}
	}
	return n
}

// Admit folds the admission-control check into the table: it reports
// whether a new connection from addr should be accepted given
// maxPerIP. maxPerIP == 0 disables the check (always admits).
func (t *Table) Admit(addr net.IP, maxPerIP int) bool {
	if maxPerIP <= 0 {
		return true
	}
	return t.CountByAddr(addr) < maxPerIP
}
