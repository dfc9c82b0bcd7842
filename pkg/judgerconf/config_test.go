package judgerconf

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseDecodesAllFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "judgerd.toml")
	contents := `
secret = "s3cr3t"

[kernel]
kernel_hz = 250

[platform]
available_memory = 1073741824
cpu_time_multiplier = 1.5

[plugin]
path = "/etc/judgerd/languages"

[log]
level = 2
`
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Parse(path)
	assert.NilError(t, err)
	assert.Equal(t, f.Secret, "s3cr3t")
	assert.Equal(t, f.Kernel.KernelHz, 250)
	assert.Equal(t, f.Platform.AvailableMemory, uint64(1073741824))
	assert.Equal(t, f.Platform.CPUTimeMultiplier, 1.5)
	assert.Equal(t, f.Plugin.Path, "/etc/judgerd/languages")
	assert.Equal(t, f.Log.Level, 2)
	assert.Equal(t, f.AccuracyUs(), uint64(4000))
}

func TestCurrentConfigRoundTrip(t *testing.T) {
	f := &File{Secret: "x"}
	SetCurrentConfig(f)
	assert.Equal(t, GetCurrentConfig(), f)
}
