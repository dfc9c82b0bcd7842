package sandbox

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/Eason0729/mdoj/judger/internal/pkg/monitor"
)

func TestReasonToExitMapping(t *testing.T) {
	cases := map[monitor.Reason]ExitKind{
		monitor.Wall:          LimitWall,
		monitor.Cpu:           LimitCpu,
		monitor.Mem:           LimitMem,
		monitor.Output:        LimitOutput,
		monitor.SystemFailure: SystemError,
	}
	for reason, want := range cases {
		assert.Equal(t, reasonToExit(reason), want)
	}
}
