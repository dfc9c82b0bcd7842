// Package sandbox composes the byte budget, rootfs mount, resource
// monitor, and jailed process into a single Container: the unit that a
// judged compile or test-case execution actually runs inside. Grounded
// on the teacher's engine/create/cleanup split in
// internal/pkg/runtime/engine/apptainer/{engine_linux,create_linux,cleanup_linux}.go
// (acquire resources in a fixed order, release them in the reverse
// order regardless of which step failed) and on original_source's
// Process.wait (spawn, race monitor against exit, settle, collect).
package sandbox

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/Eason0729/mdoj/judger/internal/pkg/budget"
	"github.com/Eason0729/mdoj/judger/internal/pkg/jail"
	"github.com/Eason0729/mdoj/judger/internal/pkg/monitor"
	"github.com/Eason0729/mdoj/judger/internal/pkg/rootfs"
	"github.com/Eason0729/mdoj/judger/pkg/sylog"
)

// stallTimeout is the outer hard deadline on one Container.Run, guarding
// against the monitor and the child's own exit both failing to resolve
// (a wedged cgroup read, a hung isolator). Distinct from the per-run
// wall-clock limit: this bounds the whole Run call regardless of what
// limits.WallMs was configured to.
const stallTimeout = time.Hour

// ExitKind is the terminal state of a Corpse.
type ExitKind int

const (
	Exited ExitKind = iota
	Signaled
	LimitWall
	LimitCpu
	LimitMem
	LimitOutput
	SystemError
)

// Corpse is the immutable result of one Container.Run.
type Corpse struct {
	Exit         ExitKind
	ExitCode     int // meaningful only when Exit == Exited
	Stdout       []byte
	CPUUsedUs    uint64
	PeakMemBytes uint64
	WallUsedUs   uint64
}

// Limits are the four independently enforced ceilings of one run, plus
// the memory share reserved from the daemon-wide budget for it (the
// byte budget and the cgroup memory ceiling are deliberately the same
// number: a run that can't fit under the cgroup ceiling can't fit under
// the host-wide one either).
type Limits = monitor.Limits

// Daemon is the process-wide Container factory: it owns the byte budget
// and the monotonically increasing run-id counter. One Daemon per
// judgerd process.
type Daemon struct {
	budget       *budget.Budget
	runDir       string // base temporary directory for per-run rootfs trees
	isolatorPath string
	cgroupVer    jail.CgroupVersion
	nextID       atomic.Uint64
}

// NewDaemon constructs a Daemon. capacity is the host-wide memory budget
// in bytes; runDir is the base directory under which each run's rootfs
// tree is created; isolatorPath is the resolved external isolator
// binary.
func NewDaemon(capacity uint64, runDir, isolatorPath string, cgroupVer jail.CgroupVersion) *Daemon {
	return &Daemon{
		budget:       budget.New(capacity),
		runDir:       runDir,
		isolatorPath: isolatorPath,
		cgroupVer:    cgroupVer,
	}
}

// Container is one judging run's exclusively-owned collection of OS
// resources: a rootfs mount, a memory reservation, and a resource
// monitor (which in turn owns the run's cgroup). It runs exactly one
// jailed process and is torn down immediately after.
type Container struct {
	id      string
	daemon  *Daemon
	rootfs  *rootfs.Handle
	reserve *budget.Reservation
	mon     *monitor.Monitor
	limits  Limits
}

// Create assembles a Container: a rootfs under the daemon's run
// directory named after a freshly allocated id, a reservation of
// limits.MemoryBytes from the daemon's byte budget, and a Monitor wired
// to that reservation's cgroup. lowerLayer is the read-only layer to
// overlay ("" for a bare scratch root).
func (d *Daemon) Create(ctx context.Context, lowerLayer string, limits Limits) (*Container, error) {
	id := d.nextID.Add(1)
	runID := "run-" + strconv.FormatUint(id, 10)

	reserve, err := d.budget.Acquire(ctx, limits.MemoryBytes)
	if err != nil {
		return nil, errors.Wrap(err, "reserving memory budget")
	}

	root, err := rootfs.Prepare(d.runDir, runID, lowerLayer)
	if err != nil {
		reserve.Release()
		return nil, errors.Wrap(err, "preparing rootfs")
	}

	mon, err := monitor.New("/judgerd/"+runID, limits)
	if err != nil {
		root.Release()
		reserve.Release()
		return nil, errors.Wrap(err, "constructing resource monitor")
	}

	return &Container{
		id:      runID,
		daemon:  d,
		rootfs:  root,
		reserve: reserve,
		mon:     mon,
		limits:  limits,
	}, nil
}

// Run executes innerArgv (rewritten onto the Container's rootfs) as the
// jailed child, feeding it stdinBytes, and returns its Corpse. The
// complete sequence: spawn, attach the child to the monitor's cgroup,
// write stdin, forward stdout, race the monitor's exhaustion signal
// against the child's own exit, settle, and collect.
func (c *Container) Run(innerArgv []string, stdinBytes []byte) (Corpse, error) {
	handles, err := jail.Spawn(jail.Spec{
		IsolatorPath: c.daemon.isolatorPath,
		CgroupVer:    c.daemon.cgroupVer,
		CgroupPath:   c.mon.CgroupPath(),
		RootfsPath:   c.rootfs.Path(),
		InnerArgv:    innerArgv,
	})
	if err != nil {
		return Corpse{Exit: SystemError}, errors.Wrap(err, "spawning jailed process")
	}
	defer handles.Close()

	if err := c.mon.Attach(handles.Pid()); err != nil {
		return Corpse{Exit: SystemError}, errors.Wrap(err, "attaching jailed process to cgroup")
	}

	go func() {
		handles.Stdin.Write(stdinBytes)
		handles.Stdin.Close()
	}()

	fwdDone := make(chan struct{})
	go func() {
		c.mon.Forward(handles.Stdout)
		close(fwdDone)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	var code int
	var exitOK bool
	var reason monitor.Reason
	stalled := false

	waitDone := make(chan struct{})
	go func() {
		code, exitOK = handles.Wait()
		close(waitDone)
	}()

	stallTimer := time.NewTimer(stallTimeout)
	defer stallTimer.Stop()

	select {
	case reason = <-exhaustedAsync(c.mon, ctx):
		// monitor tripped first: freeze the tree so it stops burning
		// CPU/memory while Kill reaches every process, then kill the
		// child now rather than waiting for the deferred Close to do
		// it on return.
		if err := c.mon.Freeze(); err != nil {
			sylog.Warningf("sandbox: container %s: freeze before kill: %s", c.id, err)
		}
		handles.Kill()
		<-waitDone
	case <-waitDone:
		time.Sleep(100 * time.Millisecond)
	case <-stallTimer.C:
		// Neither the monitor nor the child's own exit resolved within
		// the outer hard deadline: something below (cgroup wedged,
		// isolator hung) is stuck. Kill unconditionally rather than
		// wait forever.
		sylog.Warningf("sandbox: container %s stalled past %s, killing", c.id, stallTimeout)
		stalled = true
		if err := c.mon.Freeze(); err != nil {
			sylog.Warningf("sandbox: container %s: freeze before kill: %s", c.id, err)
		}
		handles.Kill()
		<-waitDone
	}
	cancel()

	<-fwdDone
	snap, finalReason := c.mon.Settle()
	if !stalled && reason == monitor.None {
		// Nothing tripped the wall/cpu poll and the child's own exit won
		// the race: finalReason now carries Settle's post-exit memory
		// classification, since a child OOM-killed at the padded cgroup
		// ceiling looks exactly like an ordinary signaled exit until the
		// peak usage is compared against the real limit.
		reason = finalReason
	}

	corpse := Corpse{
		Stdout:       c.mon.Output(),
		CPUUsedUs:    snap.CPUUs,
		PeakMemBytes: snap.PeakMemBytes,
		WallUsedUs:   snap.WallUs,
	}

	switch {
	case stalled:
		corpse.Exit = SystemError
	case reason != monitor.None:
		corpse.Exit = reasonToExit(reason)
	case exitOK:
		corpse.Exit = Exited
		corpse.ExitCode = code
	default:
		corpse.Exit = Signaled
	}

	return corpse, nil
}

// exhaustedAsync adapts Monitor.WaitExhausted's blocking call into a
// channel so it can be select-ed alongside the child's own exit.
func exhaustedAsync(m *monitor.Monitor, ctx context.Context) <-chan monitor.Reason {
	out := make(chan monitor.Reason, 1)
	go func() { out <- m.WaitExhausted(ctx) }()
	return out
}

func reasonToExit(r monitor.Reason) ExitKind {
	switch r {
	case monitor.Wall:
		return LimitWall
	case monitor.Cpu:
		return LimitCpu
	case monitor.Mem:
		return LimitMem
	case monitor.Output:
		return LimitOutput
	default:
		return SystemError
	}
}

// WriteFile injects a file (e.g. source code) into the Container's
// rootfs before Run is called.
func (c *Container) WriteFile(relPath string, data []byte) error {
	return c.rootfs.WriteFile(relPath, data)
}

// Seal releases the cgroup and memory reservation but preserves the
// Container's upper layer on disk, returning its path so the caller can
// wrap it as a Language Artifact's compiled-output layer. Used after a
// successful compile; a failed compile calls Close instead.
func (c *Container) Seal() (string, error) {
	c.mon.Close()
	c.reserve.Release()
	return c.rootfs.Seal()
}

// Close releases every OS resource the Container owns, in reverse
// acquisition order: cgroup, then mount, then memory reservation.
// Idempotent-safe; failures are logged, never panicked, matching the
// teacher's own cleanup discipline.
func (c *Container) Close() {
	sylog.Debugf("sandbox: releasing container %s", c.id)
	c.mon.Close()
	c.rootfs.Release()
	c.reserve.Release()
}
