package sandbox

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/Eason0729/mdoj/judger/internal/pkg/jail"
	"github.com/Eason0729/mdoj/judger/internal/pkg/test/require"
)

// TestContainerRunEchoesStdin exercises the full C1-C4 composition
// against a real nsjail binary, skipped unless one is on PATH (CI boxes
// running this suite unprivileged, or without nsjail installed, skip
// it). Runs /bin/cat inside the jail and checks it echoes stdin back.
func TestContainerRunEchoesStdin(t *testing.T) {
	require.Root(t)
	require.CgroupsV2(t)
	require.Isolator(t, "nsjail")

	d := NewDaemon(256*1024*1024, t.TempDir(), "nsjail", jail.CgroupV2)

	ctx := context.Background()
	c, err := d.Create(ctx, "", Limits{
		WallMs:      2000,
		CPUUs:       2_000_000,
		MemoryBytes: 64 * 1024 * 1024,
		OutputBytes: 4096,
	})
	assert.NilError(t, err)
	defer c.Close()

	corpse, err := c.Run([]string{"/bin/cat"}, []byte("hello sandbox"))
	assert.NilError(t, err)
	assert.Equal(t, corpse.Exit, Exited)
	assert.Equal(t, string(corpse.Stdout), "hello sandbox")
}
