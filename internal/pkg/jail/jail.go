// Package jail spawns the external process isolator (nsjail or a
// compatible drop-in) with a fixed, deterministic argument vector, and
// owns the resulting child's piped stdio. Grounded on the cgroup-version/
// cgroup-mount/mount argv assembly in original_source's
// judger/src/sandbox/process/process.rs (spawn_raw_process, ArgFactory)
// and on the teacher's own kill-on-drop child handling in
// internal/pkg/runtime/engine/apptainer/monitor_linux.go.
package jail

import (
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/Eason0729/mdoj/judger/pkg/sylog"
)

// CgroupVersion selects the cgroup-version flag the isolator is told to
// expect; it must match the host's actual hierarchy (detected once at
// daemon startup, not per run).
type CgroupVersion int

const (
	CgroupV1 CgroupVersion = 1
	CgroupV2 CgroupVersion = 2
)

// baseFlags are applied to every invocation regardless of language or
// limits: single-shot execution mode, no network namespace (the judged
// program never needs one and requesting it would need extra
// capabilities), and quiet isolator-internal logging so it never
// pollutes the piped stdout/stderr the run captures.
var baseFlags = []string{"--mode", "o", "--disable_clone_newnet", "--really_quiet"}

// Spec is everything needed to assemble one isolator invocation.
type Spec struct {
	// IsolatorPath is the external binary to exec (e.g. resolved once at
	// startup via exec.LookPath and cached in the daemon config).
	IsolatorPath string
	CgroupVer    CgroupVersion
	// CgroupPath is the control group the jailed child must be placed
	// into; supplied by internal/pkg/monitor.Monitor.CgroupPath().
	CgroupPath string
	// RootfsPath is the merged overlay root the jailed child sees as "/";
	// supplied by internal/pkg/rootfs.Handle.Path().
	RootfsPath string
	// InnerArgv is the program to run inside the jail and its arguments,
	// as paths relative to RootfsPath; InnerArgv[0] is rewritten to an
	// absolute path under RootfsPath before exec.
	InnerArgv []string
}

// buildArgv assembles the isolator's argument vector in the fixed order
// the spec requires: base flags, cgroup-version flag, cgroup-mount,
// mount, a literal "--" separator, then the inner argv with its first
// element rewritten to the absolute in-jail path.
func (s Spec) buildArgv() []string {
	argv := make([]string, 0, len(baseFlags)+6+len(s.InnerArgv))
	argv = append(argv, baseFlags...)
	argv = append(argv, "--cgroup_version", strconv.Itoa(int(s.CgroupVer)))
	argv = append(argv, "--cgroup_mount="+s.CgroupPath)
	argv = append(argv, "--mount="+s.RootfsPath)
	argv = append(argv, "--")
	argv = append(argv, s.rewrittenInnerArgv()...)
	return argv
}

func (s Spec) rewrittenInnerArgv() []string {
	if len(s.InnerArgv) == 0 {
		return nil
	}
	rewritten := make([]string, len(s.InnerArgv))
	rewritten[0] = filepath.Join(s.RootfsPath, s.InnerArgv[0])
	copy(rewritten[1:], s.InnerArgv[1:])
	return rewritten
}

// pathEnv derives the PATH handed to the isolator process itself (not
// the jailed child, which inherits no host PATH) from the parent
// directory of the rewritten binary, matching the original's get_env.
func (s Spec) pathEnv() string {
	return filepath.Dir(filepath.Join(s.RootfsPath, s.InnerArgv[0]))
}

// Handles are a spawned jailed child's piped stdio and wait future. The
// process is kill-on-drop: Wait, Kill and Close all share one underlying
// cmd.Wait() call, and if the caller abandons a Handles without waiting,
// Close kills the underlying process so it is never leaked.
type Handles struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	cmd    *exec.Cmd

	waitOnce sync.Once
	waitErr  error
	waited   atomic.Bool
}

// Spawn execs the isolator per spec. All stdio is piped; stderr is
// discarded since the isolator's own diagnostic chatter (and the jailed
// child's stderr) is never part of a judge verdict.
func Spawn(spec Spec) (*Handles, error) {
	cmd := exec.Command(spec.IsolatorPath, spec.buildArgv()...)
	cmd.Env = []string{"PATH=" + spec.pathEnv()}
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "creating jailed child stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "creating jailed child stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "spawning isolator %s", spec.IsolatorPath)
	}

	return &Handles{Stdin: stdin, Stdout: stdout, cmd: cmd}, nil
}

// Pid returns the isolator process's own pid, for attaching it to the
// run's cgroup once spawned.
func (h *Handles) Pid() int { return h.cmd.Process.Pid }

// Wait blocks until the jailed child exits, returning its exit code, or
// ok=false if it was terminated by a signal (the caller reports Signaled
// rather than an exit code in that case). Safe to call concurrently with
// Kill; both funnel through the same single cmd.Wait() call.
func (h *Handles) Wait() (code int, ok bool) {
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
		h.waited.Store(true)
	})
	err := h.waitErr
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() >= 0 {
			return exitErr.ExitCode(), true
		}
		return 0, false // killed by signal
	}
	sylog.Warningf("jail: wait failed: %s", err)
	return 0, false
}

// Kill terminates the child immediately. Called when the resource
// monitor trips before the child exits on its own; safe to call
// concurrently with, or in place of, Wait.
func (h *Handles) Kill() {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	h.Wait()
}

// Close ensures the child is reaped, killing it first if it has not
// already exited. Safe to call unconditionally as the owning
// Container's cleanup step, and safe to call after Wait or Kill has
// already run.
func (h *Handles) Close() {
	if !h.waited.Load() {
		h.Kill()
	}
	_ = h.Stdin.Close()
}
