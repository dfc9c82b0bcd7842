// Package judgerconf loads judgerd's startup configuration file.
// Adapted from pkg/util/apptainerconf/config.go's File-struct-plus-
// package-level-current-config idiom; that file drives a custom
// directive-line parser matching apptainer.conf's augmented-INI syntax,
// which has no reason to survive the rewrite since this daemon's config
// surface (spec §6) is four scalars and a table, a natural fit for the
// same TOML decoder already used for run limits and language manifests
// (github.com/pelletier/go-toml/v2).
package judgerconf

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// File describes judgerd's config file: kernel.kernel_hz,
// platform.available_memory, platform.cpu_time_multiplier, plugin.path,
// an optional top-level secret, and log.level.
type File struct {
	Kernel   KernelSection   `toml:"kernel"`
	Platform PlatformSection `toml:"platform"`
	Plugin   PluginSection   `toml:"plugin"`
	Log      LogSection      `toml:"log"`
	Secret   string          `toml:"secret"`
}

// LogSection carries the default log verbosity, overridable at runtime
// by the JUDGERD_MESSAGELEVEL environment variable (pkg/sylog).
type LogSection struct {
	Level int `toml:"level"`
}

// KernelSection carries the host kernel's timer resolution.
type KernelSection struct {
	KernelHz int `toml:"kernel_hz"`
}

// PlatformSection carries the host-wide resource ceilings.
type PlatformSection struct {
	AvailableMemory    uint64  `toml:"available_memory"`
	CPUTimeMultiplier  float64 `toml:"cpu_time_multiplier"`
}

// PluginSection locates the language plugin directory.
type PluginSection struct {
	Path string `toml:"path"`
}

// currentConfig mirrors apptainerconf's package-level slot for the
// config loaded at startup, shared by any package that needs it without
// threading it through every call.
var currentConfig *File

// SetCurrentConfig installs config as the process-wide current config.
func SetCurrentConfig(config *File) { currentConfig = config }

// GetCurrentConfig returns the current config, or nil if none was set.
func GetCurrentConfig() *File { return currentConfig }

// AccuracyUs is the judger's reported timing resolution, 10^6/kernel_hz
// microseconds, per spec §4.8's Info() response.
func (f *File) AccuracyUs() uint64 {
	if f.Kernel.KernelHz <= 0 {
		return 0
	}
	return uint64(1_000_000 / f.Kernel.KernelHz)
}

// Parse reads and decodes the TOML config file at path.
func Parse(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	return &f, nil
}
