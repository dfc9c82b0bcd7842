package main

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestExitCodeForMapsErrorKinds(t *testing.T) {
	assert.Equal(t, exitCodeFor(&configError{errors.New("x")}), exitConfigError)
	assert.Equal(t, exitCodeFor(&pluginError{errors.New("x")}), exitPluginError)
	assert.Equal(t, exitCodeFor(&isolatorError{errors.New("x")}), exitIsolatorMissing)
	assert.Equal(t, exitCodeFor(errors.New("unclassified")), exitConfigError)
}
