// Package monitor implements the per-run resource watchdog: a freshly
// named cgroup, a wall-clock deadline, and a bounded stdout forwarder,
// any one of which can independently declare a run exhausted. Grounded
// on go-judge's runner.go waiter race (poll cgroup usage concurrently
// with the child's own exit future) and on the teacher's own
// pipe-forwarding idiom for stdio plumbing.
package monitor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/pkg/errors"

	"github.com/Eason0729/mdoj/judger/internal/pkg/cgroups"
	"github.com/Eason0729/mdoj/judger/pkg/sylog"
)

// Reason is the first limit a run tripped, or None if it exited cleanly.
type Reason int

const (
	None Reason = iota
	Wall
	Cpu
	Mem
	Output
	// SystemFailure marks a Monitor-internal failure (cgroup creation,
	// controller read, forwarder write): fatal to the run, surfaced to
	// the caller as a SystemError judge code rather than attributed to
	// the program under test.
	SystemFailure
)

func (r Reason) String() string {
	switch r {
	case None:
		return "none"
	case Wall:
		return "wall"
	case Cpu:
		return "cpu"
	case Mem:
		return "mem"
	case Output:
		return "output"
	case SystemFailure:
		return "system-failure"
	default:
		return "unknown"
	}
}

// Limits are the four independently enforced ceilings of one run.
type Limits struct {
	WallMs      uint64 `toml:"wall_ms" json:"wall_ms"`
	CPUUs       uint64 `toml:"cpu_us" json:"cpu_us"`
	MemoryBytes uint64 `toml:"memory_bytes" json:"memory_bytes"`
	OutputBytes uint64 `toml:"output_bytes" json:"output_bytes"`
}

// Snapshot is a point-in-time (or final) resource accounting, returned
// by Monitor.Snapshot.
type Snapshot struct {
	CPUUs        uint64
	PeakMemBytes uint64
	WallUs       uint64
}

const pollInterval = 20 * time.Millisecond

// settleDelay is applied after the child exits, before the final
// Snapshot is taken, to let cgroup accounting counters catch up.
const settleDelay = 100 * time.Millisecond

// Monitor owns one run's cgroup, wall timer, and output forwarder. It is
// created alongside the run's cgroup and dropped (via Close) once the
// run's Corpse has been produced.
type Monitor struct {
	group *cgroups.RunGroup
	path  string
	limit Limits
	start time.Time

	fwd *forwarder

	once     sync.Once
	reason   Reason
	tripped  chan struct{}
	stopPoll chan struct{}
	wg       sync.WaitGroup
}

// New creates a freshly named cgroup at path with the memory ceiling
// applied, and starts the wall/cpu/output watchdog. No process is
// attached yet: CgroupPath() is handed to C4's isolator argv before the
// isolator is even spawned, so the pid to join the group isn't known
// until Attach is called after spawn.
func New(path string, limits Limits) (*Monitor, error) {
	// MemoryBytes arrives as an unsigned wire quantity (judgepb.Limits)
	// but the OCI resource spec's Memory.Limit is a signed int64;
	// go-safecast catches a caller-supplied ceiling too large to
	// represent instead of silently wrapping negative.
	memLimit, err := safecast.ToInt64(limits.MemoryBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "memory limit %d overflows cgroup limit type", limits.MemoryBytes)
	}

	group, err := cgroups.NewRunGroup(path, cgroups.Limits{MemoryBytes: memLimit})
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		group:    group,
		path:     path,
		limit:    limits,
		start:    time.Now(),
		fwd:      newForwarder(limits.OutputBytes),
		tripped:  make(chan struct{}),
		stopPoll: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.poll()

	return m, nil
}

// CgroupPath returns the path C4 places the jailed child's process into.
func (m *Monitor) CgroupPath() string { return m.path }

// Attach places pid (the just-spawned isolator process) into the run's
// cgroup. Must be called exactly once, immediately after C4's Spawn
// returns.
func (m *Monitor) Attach(pid int) error { return m.group.AddProc(pid) }

// Forward copies src into the bounded output buffer until src is
// exhausted (EOF or any read error) or the buffer fills (arming Output).
// Callers run this concurrently with the child's lifetime.
func (m *Monitor) Forward(src io.Reader) {
	full := m.fwd.copyFrom(src)
	if full {
		m.trip(Output)
	}
}

// Output returns everything forwarded so far (up to OutputBytes).
func (m *Monitor) Output() []byte { return m.fwd.bytes() }

// Freeze suspends the run's process tree. Called right before a kill
// decided by a tripped limit or a stall timeout, so the tree stops
// consuming CPU/memory between the decision and the signal actually
// landing instead of continuing to run for however long Kill takes to
// reach every process in the group.
func (m *Monitor) Freeze() error { return m.group.Freeze() }

// Thaw resumes a previously frozen run. Unused on the kill path (a
// frozen run is always destroyed, never resumed), kept for symmetry and
// for tests that need to unfreeze a group they froze directly.
func (m *Monitor) Thaw() error { return m.group.Thaw() }

// WaitExhausted blocks until any limit trips, or ctx is cancelled.
// Returns None if ctx is cancelled first (the caller's own wait on the
// child resolved).
func (m *Monitor) WaitExhausted(ctx context.Context) Reason {
	select {
	case <-m.tripped:
		return m.reason
	case <-ctx.Done():
		return None
	}
}

// Settle stops the poller after a brief delay so in-flight cgroup
// counters can flush, then takes the final Snapshot and finalizes the
// trip Reason. Called once the child process has exited (or been
// killed following a trip).
//
// Memory is classified here rather than by polling: the cgroup's real
// ceiling carries headroom (cgroups.cgroupMemoryHeadroom) over the
// caller's requested limit, so the kernel lets the child run up to
// that padded ceiling before OOM-killing it, and memory.max_usage
// rarely reaches the unpadded limit while the child is still alive.
// Comparing the final peak usage against the real limit after exit,
// the way go-judge's run.go does, is what actually catches MLE.
func (m *Monitor) Settle() (Snapshot, Reason) {
	time.Sleep(settleDelay)
	close(m.stopPoll)
	m.wg.Wait()
	snap := m.Snapshot()
	return snap, m.finalize(snap)
}

// finalize returns the Reason the run tripped for, classifying memory
// exhaustion post-hoc if nothing else already tripped.
func (m *Monitor) finalize(snap Snapshot) Reason {
	select {
	case <-m.tripped:
		return m.reason
	default:
	}
	if m.limit.MemoryBytes > 0 && snap.PeakMemBytes >= m.limit.MemoryBytes {
		m.trip(Mem)
		return Mem
	}
	return None
}

// Snapshot reads the current cgroup accounting and wall elapsed time.
// Safe to call at any point in the run's lifetime, including after
// Settle.
func (m *Monitor) Snapshot() Snapshot {
	cpu, peakMem, err := m.group.Stats()
	if err != nil {
		sylog.Warningf("monitor: reading cgroup stats for %s: %s", m.path, err)
	}
	return Snapshot{
		CPUUs:        uint64(cpu.Microseconds()),
		PeakMemBytes: peakMem,
		WallUs:       uint64(time.Since(m.start).Microseconds()),
	}
}

// Close destroys the run's cgroup. Idempotent-safe to call after
// Settle; never panics, logs cleanup failure as a warning.
func (m *Monitor) Close() {
	if err := m.group.Destroy(); err != nil {
		sylog.Warningf("monitor: failed to destroy cgroup %s: %s", m.path, err)
	}
}

func (m *Monitor) trip(reason Reason) {
	m.once.Do(func() {
		m.reason = reason
		close(m.tripped)
	})
}

// poll races the wall deadline and cgroup cpu usage against the
// configured limits, tripping the first one exceeded. Mirrors the
// waiter loop in go-judge's runner.go, trimmed to polling rather than
// subscribing to a kernel memory-pressure notifier, which the teacher's
// own cgroup manager does not expose. Memory is deliberately not polled
// here: see Settle/finalize for why that classification has to happen
// after the child exits instead.
func (m *Monitor) poll() {
	defer m.wg.Done()

	deadline := m.start.Add(time.Duration(m.limit.WallMs) * time.Millisecond)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopPoll:
			return
		case now := <-ticker.C:
			if m.limit.WallMs > 0 && !now.Before(deadline) {
				m.trip(Wall)
				continue
			}
			cpu, _, err := m.group.Stats()
			if err != nil {
				continue
			}
			if m.limit.CPUUs > 0 && uint64(cpu.Microseconds()) >= m.limit.CPUUs {
				m.trip(Cpu)
			}
		}
	}
}
