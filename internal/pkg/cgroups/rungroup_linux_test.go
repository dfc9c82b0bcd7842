package cgroups

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/Eason0729/mdoj/judger/internal/pkg/test/require"
)

func TestRunGroupAppliesLimitsAndReportsStats(t *testing.T) {
	require.Root(t)

	cmd := exec.Command("/bin/cat", "/dev/zero")
	assert.NilError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Process.Wait()
	}()

	pid := cmd.Process.Pid
	path := filepath.Join("/judgerd", "test-"+strconv.Itoa(pid))

	rg, err := NewRunGroup(path, Limits{MemoryBytes: 64 * 1024 * 1024})
	assert.NilError(t, err)
	defer rg.Destroy()

	assert.NilError(t, rg.AddProc(pid))

	_, peak, err := rg.Stats()
	assert.NilError(t, err)
	assert.Assert(t, peak <= 64*1024*1024)
}

func TestRunGroupFreezeThaw(t *testing.T) {
	require.Root(t)

	cmd := exec.Command("/bin/cat", "/dev/zero")
	assert.NilError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Process.Wait()
	}()

	pid := cmd.Process.Pid
	path := filepath.Join("/judgerd", "freeze-"+strconv.Itoa(pid))

	rg, err := NewRunGroup(path, Limits{MemoryBytes: 64 * 1024 * 1024})
	assert.NilError(t, err)
	defer rg.Destroy()

	assert.NilError(t, rg.AddProc(pid))

	assert.NilError(t, rg.Freeze())
	assert.NilError(t, rg.Thaw())
}
