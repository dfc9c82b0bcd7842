// Package judgeserver implements the Streaming Judge Service (C8): the
// gRPC-over-HTTP/2 front door that authenticates a request, compiles
// the submitted source once, then runs it against each test case in
// turn, streaming a CaseStarted/CaseResult pair per test until either
// the tests are exhausted or a terminal verdict stops the run early.
// Grounded on ehrlich-b/wingthing's internal/egg/server.go (a
// grpc.Server wrapping a sandboxed child, each RPC authenticated via
// request metadata and every failure returned through
// google.golang.org/grpc/status) and on apptainer's rpc/server (one
// method per verb, arguments/results structs per call).
package judgeserver

import (
	"context"
	"crypto/subtle"

	"github.com/google/uuid"

	"github.com/Eason0729/mdoj/judger/internal/pkg/judgererr"
	"github.com/Eason0729/mdoj/judger/internal/pkg/lang"
	"github.com/Eason0729/mdoj/judger/internal/pkg/sandbox"
	"github.com/Eason0729/mdoj/judger/internal/pkg/verdict"
	"github.com/Eason0729/mdoj/judger/pkg/judgepb"
	"github.com/Eason0729/mdoj/judger/pkg/sylog"

	"google.golang.org/grpc/metadata"
)

// outboundCapacity is the bounded channel capacity between a worker
// task and the outbound stream send loop, per spec §4.8's channel
// discipline.
const outboundCapacity = 2

// Server implements judgepb.JudgeServer.
type Server struct {
	judgepb.UnimplementedJudgeServer

	registry      *lang.Registry
	daemon        *sandbox.Daemon
	secret        string
	totalMemory   uint64
	accuracyUs    uint64
	cpuMultiplier float64
}

// New constructs a Server. secret may be empty, disabling
// authentication entirely per spec §4.8.
func New(registry *lang.Registry, daemon *sandbox.Daemon, secret string, totalMemory, accuracyUs uint64, cpuMultiplier float64) *Server {
	return &Server{
		registry:      registry,
		daemon:        daemon,
		secret:        secret,
		totalMemory:   totalMemory,
		accuracyUs:    accuracyUs,
		cpuMultiplier: cpuMultiplier,
	}
}

// authenticate enforces spec §4.8's Authorization header check: a
// length-constant, no-early-exit comparison against "basic "+secret.
// Skipped entirely when no secret is configured.
func (s *Server) authenticate(ctx context.Context) error {
	if s.secret == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return judgererr.PermissionDeniedf("missing authorization header")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return judgererr.PermissionDeniedf("missing authorization header")
	}
	want := []byte("basic " + s.secret)
	got := []byte(values[0])
	// Compare a want-sized copy of got so the byte compare always walks
	// the full length of want, whatever the length of got; the length
	// check is folded in without branching.
	padded := make([]byte, len(want))
	copy(padded, got)
	equal := subtle.ConstantTimeEq(int32(len(got)), int32(len(want)))
	equal &= subtle.ConstantTimeCompare(padded, want)
	if equal != 1 {
		return judgererr.PermissionDeniedf("invalid authorization header")
	}
	return nil
}

// Info returns a synchronous snapshot of the daemon's configuration
// and loaded languages.
func (s *Server) Info(ctx context.Context, req *judgepb.InfoRequest) (*judgepb.InfoResponse, error) {
	if err := s.authenticate(ctx); err != nil {
		return nil, judgererr.ToStatus(err)
	}

	langs := s.registry.List()
	infos := make([]judgepb.LanguageInfo, 0, len(langs))
	for _, l := range langs {
		infos = append(infos, judgepb.LanguageInfo{UUID: l.UUID.String(), DisplayName: l.DisplayName})
	}

	return &judgepb.InfoResponse{
		Languages:     infos,
		TotalMemory:   s.totalMemory,
		AccuracyUs:    s.accuracyUs,
		CPUMultiplier: s.cpuMultiplier,
	}, nil
}

func toSandboxLimits(l judgepb.Limits) sandbox.Limits {
	return sandbox.Limits{
		WallMs:      l.WallMs,
		CPUUs:       l.CPUUs,
		MemoryBytes: l.MemoryBytes,
		OutputBytes: l.OutputBytes,
	}
}

func toVerdictRule(r judgepb.MatchRule) (verdict.Rule, bool) {
	switch r {
	case judgepb.MatchExact:
		return verdict.ExactMatch, true
	case judgepb.MatchIgnoreSnl:
		return verdict.IgnoreTrailingWhitespace, true
	case judgepb.MatchSkipSnl:
		return verdict.SkipSnl, true
	default:
		return 0, false
	}
}

func corpseToStatus(corpse sandbox.Corpse, accepted bool) judgepb.StatusCode {
	switch corpse.Exit {
	case sandbox.LimitCpu, sandbox.LimitWall:
		return judgepb.StatusTLE
	case sandbox.LimitMem:
		return judgepb.StatusMLE
	case sandbox.LimitOutput:
		return judgepb.StatusOLE
	case sandbox.Signaled:
		return judgepb.StatusRE
	case sandbox.SystemError:
		return judgepb.StatusSystemError
	case sandbox.Exited:
		if corpse.ExitCode != 0 {
			return judgepb.StatusRE
		}
		if accepted {
			return judgepb.StatusAC
		}
		return judgepb.StatusWA
	default:
		return judgepb.StatusSystemError
	}
}

// stopsStream reports whether code is one of the terminal codes that
// halt the per-test loop early, per spec §4.8 step 3.
func stopsStream(code judgepb.StatusCode) bool {
	switch code {
	case judgepb.StatusTLE, judgepb.StatusMLE, judgepb.StatusOLE, judgepb.StatusRE, judgepb.StatusSystemError:
		return true
	default:
		return false
	}
}

// Judge implements the compile-then-run-every-test streaming RPC.
func (s *Server) Judge(req *judgepb.JudgeRequest, stream judgepb.Judge_JudgeServer) error {
	if err := s.authenticate(stream.Context()); err != nil {
		return judgererr.ToStatus(err)
	}

	rule, ok := toVerdictRule(req.Rule)
	if !ok {
		return judgererr.ToStatus(judgererr.BadRequestf("unknown match rule %d", req.Rule))
	}
	langUUID, err := req.ParseUUID()
	if err != nil {
		return judgererr.ToStatus(judgererr.BadRequestf("malformed language uuid: %s", err))
	}

	events := make(chan *judgepb.JudgeEvent, outboundCapacity)
	done := make(chan error, 1)
	workerCtx, cancelWorker := context.WithCancel(stream.Context())
	defer cancelWorker()

	go func() {
		done <- s.runJudge(workerCtx, langUUID, req, rule, events)
		close(events)
	}()

	for ev := range events {
		if err := stream.Send(ev); err != nil {
			// Client gone: cancel so the worker's next send (or its next
			// budget/monitor wait) observes ctx.Done() instead of
			// blocking on an events channel nobody drains anymore.
			cancelWorker()
			<-done
			return nil
		}
	}
	return judgererr.ToStatus(<-done)
}

// send delivers ev on events unless ctx is cancelled first, so a
// disconnected client's worker goroutine can always make forward
// progress instead of blocking on a full, undrained channel.
func send(ctx context.Context, events chan<- *judgepb.JudgeEvent, ev *judgepb.JudgeEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (s *Server) runJudge(ctx context.Context, langUUID uuid.UUID, req *judgepb.JudgeRequest, rule verdict.Rule, events chan<- *judgepb.JudgeEvent) error {
	artifact, err := s.registry.Compile(ctx, s.daemon, langUUID, req.SourceCode)
	if err != nil {
		if _, ok := err.(*lang.ErrLanguageNotFound); ok {
			return judgererr.BadRequestf("unknown language %s", langUUID)
		}
		if ce, ok := err.(*lang.CompileError); ok {
			logs := ""
			if len(ce.Logs) > 0 {
				logs = ce.Logs[0].Message
			}
			send(ctx, events, &judgepb.JudgeEvent{Result: &judgepb.CaseResult{Status: judgepb.StatusCE, Logs: logs}})
			return nil
		}
		return judgererr.Internalf("compile failed: %s", err)
	}
	defer artifact.Release()

	limits := toSandboxLimits(req.Limits)
	for i, test := range req.Tests {
		if ctx.Err() != nil {
			return nil
		}
		index := int32(i + 1)
		send(ctx, events, &judgepb.JudgeEvent{CaseStarted: index})

		corpse, err := artifact.Execute(ctx, s.daemon, test.Input, limits)
		if err != nil {
			sylog.Warningf("judgeserver: execute failed for test %d: %s", index, err)
			send(ctx, events, &judgepb.JudgeEvent{Result: &judgepb.CaseResult{Index: index, Status: judgepb.StatusSystemError}})
			return nil
		}

		accepted := corpse.Exit == sandbox.Exited && corpse.ExitCode == 0 && verdict.Compare(rule, corpse.Stdout, test.Output)
		status := corpseToStatus(corpse, accepted)

		send(ctx, events, &judgepb.JudgeEvent{Result: &judgepb.CaseResult{
			Index:       index,
			Status:      status,
			TimeUs:      corpse.CPUUsedUs,
			MemoryBytes: corpse.PeakMemBytes,
			AccuracyUs:  s.accuracyUs,
		}})

		if stopsStream(status) {
			return nil
		}
	}
	return nil
}

// Exec implements the diagnostic single-run endpoint: compile logs as
// they're produced, then one final Output event.
func (s *Server) Exec(req *judgepb.ExecRequest, stream judgepb.Judge_ExecServer) error {
	if err := s.authenticate(stream.Context()); err != nil {
		return judgererr.ToStatus(err)
	}

	langUUID, err := req.ParseUUID()
	if err != nil {
		return judgererr.ToStatus(judgererr.BadRequestf("malformed language uuid: %s", err))
	}

	ctx := stream.Context()
	artifact, err := s.registry.Compile(ctx, s.daemon, langUUID, req.SourceCode)
	if err != nil {
		var compileErr *lang.CompileError
		if ce, ok := err.(*lang.CompileError); ok {
			compileErr = ce
		}
		if compileErr != nil {
			for _, line := range compileErr.Logs {
				if err := stream.Send(&judgepb.ExecEvent{CompileLog: line.Message}); err != nil {
					return nil
				}
			}
			return nil
		}
		return judgererr.ToStatus(judgererr.Internalf("compile failed: %s", err))
	}
	defer artifact.Release()

	for _, line := range artifact.CompileLogs() {
		if err := stream.Send(&judgepb.ExecEvent{CompileLog: line.Message}); err != nil {
			return nil
		}
	}

	corpse, err := artifact.Execute(ctx, s.daemon, req.Stdin, toSandboxLimits(req.Limits))
	if err != nil {
		return judgererr.ToStatus(judgererr.Internalf("execute failed: %s", err))
	}

	if err := stream.Send(&judgepb.ExecEvent{Output: corpse.Stdout}); err != nil {
		return nil
	}
	return nil
}
