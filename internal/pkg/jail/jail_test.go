package jail

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestBuildArgvOrdering(t *testing.T) {
	spec := Spec{
		IsolatorPath: "/usr/bin/nsjail",
		CgroupVer:    CgroupV2,
		CgroupPath:   "/sys/fs/cgroup/judgerd/run-1",
		RootfsPath:   "/tmp/judgerd/run-1/merged",
		InnerArgv:    []string{"/usr/bin/python3", "main.py"},
	}

	argv := spec.buildArgv()

	want := append([]string{}, baseFlags...)
	want = append(want,
		"--cgroup_version", "2",
		"--cgroup_mount=/sys/fs/cgroup/judgerd/run-1",
		"--mount=/tmp/judgerd/run-1/merged",
		"--",
		"/tmp/judgerd/run-1/merged/usr/bin/python3",
		"main.py",
	)

	assert.DeepEqual(t, argv, want)
}

func TestPathEnvDerivedFromRewrittenBinary(t *testing.T) {
	spec := Spec{
		RootfsPath: "/tmp/judgerd/run-1/merged",
		InnerArgv:  []string{"/usr/bin/python3"},
	}
	assert.Equal(t, spec.pathEnv(), "/tmp/judgerd/run-1/merged/usr/bin")
}
