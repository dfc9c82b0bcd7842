// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"os"
	"path/filepath"
	"syscall"
)

// emptyLowerDir is a process-wide scratch directory used as the overlay
// lowerdir when a run has no language layer to stack on (the compile
// phase of a language with no base image, or a future bare-metal
// manifest). Overlayfs requires at least one lowerdir.
var emptyLowerDir = filepath.Join(os.TempDir(), "judgerd-empty-lower")

func init() {
	_ = os.MkdirAll(emptyLowerDir, 0o755)
}

func mountOverlay(target, data string) error {
	return syscall.Mount("overlay", target, "overlay", 0, data)
}

// unmountRetrying unmounts path, retrying through transient EBUSY up to
// 10 times before falling back to a lazy (detached) unmount. Mirrors the
// teacher's own umount() retry discipline for rootfs/image mounts that
// can legitimately stay busy for a few milliseconds after the last
// process referencing them exits.
func unmountRetrying(path string) error {
	var err error
	for retries := 0; retries < 10; retries++ {
		err = syscall.Unmount(path, 0)
		if err == nil || err != syscall.EBUSY {
			break
		}
	}
	if err == syscall.EBUSY {
		return syscall.Unmount(path, syscall.MNT_DETACH)
	}
	if err == syscall.EINVAL {
		// not a mount point; nothing to do
		return nil
	}
	return err
}
