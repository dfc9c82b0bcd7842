package monitor

import (
	"bytes"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestForwarderCopiesWithinCapacity(t *testing.T) {
	f := newForwarder(16)
	full := f.copyFrom(strings.NewReader("hello world"))
	assert.Equal(t, full, false)
	assert.Equal(t, string(f.bytes()), "hello world")
}

func TestForwarderTripsOutputButCapsAtOutputBytes(t *testing.T) {
	f := newForwarder(4)
	full := f.copyFrom(bytes.NewReader([]byte("abcdefgh")))
	assert.Equal(t, full, true)
	assert.Equal(t, len(f.bytes()), 4)
	assert.Equal(t, string(f.bytes()), "abcd")
}

func TestForwarderExactFitDoesNotTripOutput(t *testing.T) {
	f := newForwarder(5)
	full := f.copyFrom(strings.NewReader("abcde"))
	assert.Equal(t, full, false)
	assert.Equal(t, string(f.bytes()), "abcde")
}
