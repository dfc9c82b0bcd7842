// Package lang implements the language plugin layer: a directory of
// per-language manifests and pre-built rootfs layers, scanned once at
// startup, each exposing compile and execute. Manifest loading follows
// the teacher's own TOML-config idiom in pkg/util/apptainerconf/config.go;
// the uuid-keyed registry follows the shape (not the code) of the
// teacher's internal/pkg/plugin module registry, which is built around
// Go plugin.Plugin rather than a TOML manifest and so isn't reusable
// directly here.
package lang

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/Eason0729/mdoj/judger/internal/pkg/sandbox"
	"github.com/Eason0729/mdoj/judger/pkg/sylog"
)

// Manifest is one language's static description, loaded once at
// startup from <plugin dir>/<name>/manifest.toml.
type Manifest struct {
	UUID                   uuid.UUID      `toml:"uuid"`
	DisplayName            string         `toml:"display_name"`
	CompileArgvTemplate    []string       `toml:"compile_argv"`
	RunArgvTemplate        []string       `toml:"run_argv"`
	DefaultLimits          sandbox.Limits `toml:"default_limits"`
	SourceFilename         string         `toml:"source_filename"`
	BinaryFilename         string         `toml:"binary_filename"`
	CompileLimitMultiplier float64        `toml:"compile_limit_multiplier"`
}

// LanguageInfo is the subset of a Manifest exposed to list callers.
type LanguageInfo struct {
	UUID        uuid.UUID
	DisplayName string
}

// LogLevel is a compile-log line's severity, presentation-only.
type LogLevel int

const (
	LogInfo LogLevel = iota
	LogWarning
	LogError
)

// LogLine is one line of collected compiler output.
type LogLine struct {
	Level   LogLevel
	Message string
}

// CompileError is returned when a compile's argv exits non-zero; it
// carries the collected compiler output for diagnostic streaming.
type CompileError struct {
	Logs []LogLine
}

func (e *CompileError) Error() string { return "compile failed" }

// ErrLanguageNotFound is returned by Compile when uuid names no loaded
// language.
type ErrLanguageNotFound struct{ UUID uuid.UUID }

func (e *ErrLanguageNotFound) Error() string { return "language not found: " + e.UUID.String() }

// language pairs a loaded Manifest with the directory its pre-built
// rootfs layer lives in.
type language struct {
	manifest Manifest
	layerDir string
}

// Registry is the set of languages loaded from one plugin directory.
type Registry struct {
	byUUID map[uuid.UUID]*language
}

// Load scans dir for one subdirectory per language, each containing
// manifest.toml and a rootfs/ layer directory.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading plugin directory %s", dir)
	}

	reg := &Registry{byUUID: make(map[uuid.UUID]*language)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		langDir := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(langDir, "manifest.toml")

		data, err := os.ReadFile(manifestPath)
		if err != nil {
			sylog.Warningf("lang: skipping %s: %s", langDir, err)
			continue
		}

		var m Manifest
		if err := toml.Unmarshal(data, &m); err != nil {
			sylog.Warningf("lang: skipping %s: invalid manifest: %s", langDir, err)
			continue
		}

		reg.byUUID[m.UUID] = &language{manifest: m, layerDir: filepath.Join(langDir, "rootfs")}
		sylog.Verbosef("lang: loaded %s (%s)", m.DisplayName, m.UUID)
	}

	return reg, nil
}

// List returns every loaded language's presentation info.
func (r *Registry) List() []LanguageInfo {
	infos := make([]LanguageInfo, 0, len(r.byUUID))
	for _, l := range r.byUUID {
		infos = append(infos, LanguageInfo{UUID: l.manifest.UUID, DisplayName: l.manifest.DisplayName})
	}
	return infos
}

// Artifact is a sealed compile output: a read-only rootfs layer
// containing the compiled binary, reusable across many executions.
type Artifact struct {
	lang     *language
	layerDir string
	logs     []LogLine
}

// CompileLogs returns the compiler output collected while producing
// this Artifact, drained before execution for diagnostic streaming.
func (a *Artifact) CompileLogs() []LogLine { return a.logs }

// Compile writes source into a fresh Container built from the
// language's base layer, runs the manifest's compile argv under
// default_limits with the wall and CPU time limits scaled by
// compile_limit_multiplier (memory and output limits are not scaled),
// and on success seals the result into an Artifact.
func (r *Registry) Compile(ctx context.Context, daemon *sandbox.Daemon, id uuid.UUID, source []byte) (*Artifact, error) {
	l, ok := r.byUUID[id]
	if !ok {
		return nil, &ErrLanguageNotFound{UUID: id}
	}

	limits := l.manifest.DefaultLimits
	limits.WallMs = scale(limits.WallMs, l.manifest.CompileLimitMultiplier)
	limits.CPUUs = scale(limits.CPUUs, l.manifest.CompileLimitMultiplier)

	c, err := daemon.Create(ctx, l.layerDir, limits)
	if err != nil {
		return nil, errors.Wrap(err, "creating compile container")
	}

	if err := c.WriteFile(l.manifest.SourceFilename, source); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "writing source file")
	}

	corpse, err := c.Run(l.manifest.CompileArgvTemplate, nil)
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "running compile argv")
	}

	if corpse.Exit != sandbox.Exited || corpse.ExitCode != 0 {
		c.Close()
		return nil, &CompileError{Logs: []LogLine{{Level: LogError, Message: string(corpse.Stdout)}}}
	}

	layerDir, err := c.Seal()
	if err != nil {
		return nil, errors.Wrap(err, "sealing compile container")
	}

	var logs []LogLine
	if len(corpse.Stdout) > 0 {
		logs = []LogLine{{Level: LogInfo, Message: string(corpse.Stdout)}}
	}

	return &Artifact{lang: l, layerDir: layerDir, logs: logs}, nil
}

// Execute runs the manifest's run argv in a fresh Container built on top
// of the Artifact's layer.
func (a *Artifact) Execute(ctx context.Context, daemon *sandbox.Daemon, stdin []byte, limits sandbox.Limits) (sandbox.Corpse, error) {
	c, err := daemon.Create(ctx, a.layerDir, limits)
	if err != nil {
		return sandbox.Corpse{}, errors.Wrap(err, "creating execute container")
	}
	defer c.Close()

	return c.Run(a.lang.manifest.RunArgvTemplate, stdin)
}

// Release removes the Artifact's compiled-output layer from disk. Must
// be called once the last execution referencing it has completed.
func (a *Artifact) Release() {
	if err := os.RemoveAll(a.layerDir); err != nil {
		sylog.Warningf("lang: failed to remove artifact layer %s: %s", a.layerDir, err)
	}
}

func scale(v uint64, multiplier float64) uint64 {
	if multiplier <= 0 {
		return v
	}
	return uint64(float64(v) * multiplier)
}
