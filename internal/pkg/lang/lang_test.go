package lang

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func writeManifest(t *testing.T, pluginDir, name string, id uuid.UUID) {
	t.Helper()
	langDir := filepath.Join(pluginDir, name)
	assert.NilError(t, os.MkdirAll(filepath.Join(langDir, "rootfs"), 0o755))

	manifest := `
uuid = "` + id.String() + `"
display_name = "` + name + `"
compile_argv = ["/usr/bin/gcc", "-o", "main", "main.c"]
run_argv = ["/main"]
source_filename = "main.c"
binary_filename = "main"
compile_limit_multiplier = 2.0

[default_limits]
wall_ms = 1000
cpu_us = 1000000
memory_bytes = 67108864
output_bytes = 65536
`
	assert.NilError(t, os.WriteFile(filepath.Join(langDir, "manifest.toml"), []byte(manifest), 0o644))
}

func TestLoadListsEveryValidManifest(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	writeManifest(t, dir, "c11", id)

	reg, err := Load(dir)
	assert.NilError(t, err)

	infos := reg.List()
	assert.Equal(t, len(infos), 1)
	assert.Equal(t, infos[0].UUID, id)
	assert.Equal(t, infos[0].DisplayName, "c11")
}

func TestLoadSkipsDirectoriesWithoutAManifest(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))

	reg, err := Load(dir)
	assert.NilError(t, err)
	assert.Equal(t, len(reg.List()), 0)
}

func TestCompileUnknownLanguageReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	assert.NilError(t, err)

	_, err = reg.Compile(nil, nil, uuid.New(), nil)
	var notFound *ErrLanguageNotFound
	assert.Assert(t, errors.As(err, &notFound))
}
