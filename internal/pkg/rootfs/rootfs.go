// Package rootfs prepares and tears down the per-run isolated root
// filesystem a jailed process sees as "/": an overlay of a read-only
// layer (a language's base layer, a compiled Artifact's layer, or an
// empty directory) under a private, writable upper directory unique to
// the run.
package rootfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Eason0729/mdoj/judger/pkg/sylog"
)

// State is the lifecycle stage of a Handle.
type State int

const (
	// Prepared means the upper/work/merged directories exist and the
	// overlay mount has not yet been established.
	Prepared State = iota
	// Active means the overlay is mounted and Path() refers to a live
	// root filesystem.
	Active
	// Released means Release has completed; the Handle must not be used
	// again.
	Released
)

// Handle is one run's exclusively-owned root filesystem. It is never
// shared between two concurrent Containers.
type Handle struct {
	id       string
	base     string // <tmp>/<id>
	lower    string // read-only layer, "" to overlay emptyLowerDir
	upper    string
	work     string
	merged   string
	state    State
	mounted  bool
}

// Prepare creates a private upper/work/merged directory tree under base
// for run id, optionally overlaying lowerLayer (a read-only language
// rootfs template; empty means an unadorned writable root), and performs
// the overlay mount. The returned Handle owns this filesystem exclusively
// until Release is called.
func Prepare(base, id, lowerLayer string) (*Handle, error) {
	runDir := filepath.Join(base, id)
	h := &Handle{
		id:     id,
		base:   runDir,
		lower:  lowerLayer,
		upper:  filepath.Join(runDir, "upper"),
		work:   filepath.Join(runDir, "work"),
		merged: filepath.Join(runDir, "merged"),
	}

	for _, dir := range []string{h.upper, h.work, h.merged} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating rootfs directory %s", dir)
		}
	}
	h.state = Prepared

	if err := h.mount(); err != nil {
		// best-effort cleanup of what we just created, then surface the
		// mount failure
		os.RemoveAll(runDir)
		return nil, err
	}
	h.state = Active

	return h, nil
}

// Path returns the root filesystem path a jailed child should be chrooted
// or bind-mounted into. Only meaningful while State is Active.
func (h *Handle) Path() string {
	return h.merged
}

// ID returns the run id this handle was prepared for.
func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) mount() error {
	data := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", h.lowerdir(), h.upper, h.work)
	if err := mountOverlay(h.merged, data); err != nil {
		return errors.Wrapf(err, "mounting overlay rootfs for run %s", h.id)
	}
	h.mounted = true
	return nil
}

// lowerdir resolves the overlay's read-only layer. An empty language
// layer falls back to an empty directory so the overlay syntax stays
// valid for a bare scratch root.
func (h *Handle) lowerdir() string {
	if h.lower != "" {
		return h.lower
	}
	return emptyLowerDir
}

// WriteFile writes data to relPath under the live merged root. Used to
// inject source code into a fresh Container before a compile run.
func (h *Handle) WriteFile(relPath string, data []byte) error {
	target := filepath.Join(h.merged, relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directory for %s", relPath)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", relPath)
	}
	return nil
}

// Seal unmounts the overlay but preserves the private upper layer
// (rather than deleting the whole run directory, as Release does),
// returning its path so a caller can reuse it as the read-only lower
// layer of a future Container — the compiled-output layer a Language
// Artifact wraps.
func (h *Handle) Seal() (string, error) {
	if h.state != Active {
		return "", errors.Errorf("rootfs: cannot seal handle in state %v", h.state)
	}
	if h.mounted {
		if err := unmountRetrying(h.merged); err != nil {
			sylog.Warningf("rootfs: failed to unmount %s during seal: %s", h.merged, err)
		}
	}
	if err := os.RemoveAll(h.work); err != nil {
		sylog.Warningf("rootfs: failed to remove work dir %s: %s", h.work, err)
	}
	if err := os.RemoveAll(h.merged); err != nil {
		sylog.Warningf("rootfs: failed to remove merged dir %s: %s", h.merged, err)
	}
	h.state = Released
	return h.upper, nil
}

// Release unmounts the overlay (retrying through transient EBUSY and
// falling back to a lazy/detached unmount) and removes the private
// upper/work/merged tree. Failure to unmount is logged, never panicked;
// directories that resist removal are left for best-effort later
// cleanup, matching the teacher's own cleanup discipline.
func (h *Handle) Release() {
	if h == nil || h.state == Released {
		return
	}
	if h.mounted {
		if err := unmountRetrying(h.merged); err != nil {
			sylog.Warningf("rootfs: failed to unmount %s: %s", h.merged, err)
		}
	}
	if err := os.RemoveAll(h.base); err != nil {
		sylog.Warningf("rootfs: failed to remove run directory %s (marked for later cleanup): %s", h.base, err)
	}
	h.state = Released
}
