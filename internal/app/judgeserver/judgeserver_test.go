package judgeserver

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"gotest.tools/v3/assert"

	"github.com/Eason0729/mdoj/judger/internal/pkg/sandbox"
	"github.com/Eason0729/mdoj/judger/pkg/judgepb"
)

func TestCorpseToStatusMapping(t *testing.T) {
	cases := []struct {
		corpse   sandbox.Corpse
		accepted bool
		want     judgepb.StatusCode
	}{
		{sandbox.Corpse{Exit: sandbox.LimitCpu}, false, judgepb.StatusTLE},
		{sandbox.Corpse{Exit: sandbox.LimitWall}, false, judgepb.StatusTLE},
		{sandbox.Corpse{Exit: sandbox.LimitMem}, false, judgepb.StatusMLE},
		{sandbox.Corpse{Exit: sandbox.LimitOutput}, false, judgepb.StatusOLE},
		{sandbox.Corpse{Exit: sandbox.Signaled}, false, judgepb.StatusRE},
		{sandbox.Corpse{Exit: sandbox.SystemError}, false, judgepb.StatusSystemError},
		{sandbox.Corpse{Exit: sandbox.Exited, ExitCode: 1}, false, judgepb.StatusRE},
		{sandbox.Corpse{Exit: sandbox.Exited, ExitCode: 0}, true, judgepb.StatusAC},
		{sandbox.Corpse{Exit: sandbox.Exited, ExitCode: 0}, false, judgepb.StatusWA},
	}
	for _, c := range cases {
		assert.Equal(t, corpseToStatus(c.corpse, c.accepted), c.want)
	}
}

func TestStopsStream(t *testing.T) {
	stops := []judgepb.StatusCode{judgepb.StatusTLE, judgepb.StatusMLE, judgepb.StatusOLE, judgepb.StatusRE, judgepb.StatusSystemError}
	for _, s := range stops {
		assert.Assert(t, stopsStream(s))
	}
	continues := []judgepb.StatusCode{judgepb.StatusAC, judgepb.StatusWA, judgepb.StatusCE}
	for _, s := range continues {
		assert.Assert(t, !stopsStream(s))
	}
}

func TestAuthenticateSkippedWhenNoSecretConfigured(t *testing.T) {
	s := &Server{secret: ""}
	assert.NilError(t, s.authenticate(context.Background()))
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	s := &Server{secret: "topsecret"}
	err := s.authenticate(context.Background())
	assert.ErrorContains(t, err, "missing authorization")
}

func TestAuthenticateRejectsMismatch(t *testing.T) {
	s := &Server{secret: "topsecret"}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "basic wrong"))
	err := s.authenticate(ctx)
	assert.ErrorContains(t, err, "invalid authorization")
}

func TestAuthenticateAcceptsMatch(t *testing.T) {
	s := &Server{secret: "topsecret"}
	ctx := metadata.NewIncomingContext(context.Background(), judgepb.AuthHeader("topsecret"))
	assert.NilError(t, s.authenticate(ctx))
}

func TestInfoRequiresAuth(t *testing.T) {
	s := &Server{secret: "topsecret"}
	_, err := s.Info(context.Background(), &judgepb.InfoRequest{})
	st, ok := status.FromError(err)
	assert.Assert(t, ok)
	assert.Equal(t, st.Code(), codes.PermissionDenied)
}
