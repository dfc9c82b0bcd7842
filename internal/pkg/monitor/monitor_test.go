package monitor

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestReasonString(t *testing.T) {
	cases := map[Reason]string{
		None:          "none",
		Wall:          "wall",
		Cpu:           "cpu",
		Mem:           "mem",
		Output:        "output",
		SystemFailure: "system-failure",
	}
	for reason, want := range cases {
		assert.Equal(t, reason.String(), want)
	}
}

func TestNewRejectsMemoryLimitThatOverflowsInt64(t *testing.T) {
	_, err := New("/judgerd/overflow-test", Limits{MemoryBytes: 1 << 63})
	assert.ErrorContains(t, err, "overflows cgroup limit type")
}

func TestFinalizeClassifiesMemoryPostExit(t *testing.T) {
	m := &Monitor{limit: Limits{MemoryBytes: 100}, tripped: make(chan struct{})}
	assert.Equal(t, m.finalize(Snapshot{PeakMemBytes: 150}), Mem)
}

func TestFinalizeNoneWhenUnderLimit(t *testing.T) {
	m := &Monitor{limit: Limits{MemoryBytes: 100}, tripped: make(chan struct{})}
	assert.Equal(t, m.finalize(Snapshot{PeakMemBytes: 50}), None)
}

func TestFinalizeKeepsAnAlreadyTrippedReason(t *testing.T) {
	m := &Monitor{limit: Limits{MemoryBytes: 100}, tripped: make(chan struct{})}
	m.reason = Wall
	close(m.tripped)
	// Peak memory also exceeds the limit here, but wall already won the
	// race while the child was alive; finalize must not overwrite it.
	assert.Equal(t, m.finalize(Snapshot{PeakMemBytes: 150}), Wall)
}
