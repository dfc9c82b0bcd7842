package judgererr

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gotest.tools/v3/assert"
)

func TestToStatusMapsKindsToCodes(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{BadRequestf("bad uuid %q", "x"), codes.FailedPrecondition},
		{ResourceExhaustedf("no budget"), codes.ResourceExhausted},
		{PermissionDeniedf("bad secret"), codes.PermissionDenied},
		{Internalf("cgroup create failed"), codes.Internal},
		{errors.New("unclassified"), codes.Internal},
	}
	for _, c := range cases {
		st, ok := status.FromError(ToStatus(c.err))
		assert.Assert(t, ok)
		assert.Equal(t, st.Code(), c.code)
	}
}

func TestToStatusNilIsNil(t *testing.T) {
	assert.Assert(t, ToStatus(nil) == nil)
}
