package rootfs

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/Eason0729/mdoj/judger/internal/pkg/test/require"
)

func TestPrepareAndReleaseCleansUpDirectories(t *testing.T) {
	require.Root(t)

	base := t.TempDir()
	h, err := Prepare(base, "run-1", "")
	assert.NilError(t, err)
	assert.Equal(t, h.state, Active)

	if _, err := os.Stat(h.Path()); err != nil {
		t.Fatalf("expected merged root to exist: %s", err)
	}

	h.Release()
	assert.Equal(t, h.state, Released)

	if _, err := os.Stat(filepath.Join(base, "run-1")); !os.IsNotExist(err) {
		t.Fatalf("expected run directory to be removed, stat err = %v", err)
	}
}

func TestReleaseIsSafeOnNilAndDoubleCall(t *testing.T) {
	var h *Handle
	h.Release() // must not panic

	require.Root(t)
	base := t.TempDir()
	h, err := Prepare(base, "run-2", "")
	assert.NilError(t, err)
	h.Release()
	h.Release() // must not panic or double-unmount
}
