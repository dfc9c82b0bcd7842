// Package judgepb defines the wire messages and gRPC service contract
// of the Streaming Judge Service (spec §4.8/§6). No .proto compiler is
// available in this environment, so the messages are hand-written Go
// structs carried over a custom JSON codec (codec.go) registered with
// google.golang.org/grpc/encoding, and the service/client stubs
// (service.go) are hand-authored in the shape protoc-gen-go-grpc would
// produce. Grounded on ehrlich-b/wingthing's internal/egg/pb client
// usage (oneof-style payload wrapping for a streaming event, unary
// request/response pairs for everything else) and on
// google.golang.org/grpc's own encoding.Codec interface.
package judgepb

import "github.com/google/uuid"

// MatchRule mirrors verdict.Rule across the wire.
type MatchRule int32

const (
	MatchExact MatchRule = iota
	MatchIgnoreSnl
	MatchSkipSnl
)

// TestCase is one judged test: an input fed to stdin and the output
// expected on stdout.
type TestCase struct {
	Input  []byte `json:"input"`
	Output []byte `json:"output"`
}

// Limits mirrors sandbox.Limits across the wire.
type Limits struct {
	WallMs      uint64 `json:"wall_ms"`
	CPUUs       uint64 `json:"cpu_us"`
	MemoryBytes uint64 `json:"memory_bytes"`
	OutputBytes uint64 `json:"output_bytes"`
}

// JudgeRequest is the single request message of the Judge RPC.
type JudgeRequest struct {
	LanguageUUID string     `json:"language_uuid"`
	SourceCode   []byte     `json:"source_code"`
	Limits       Limits     `json:"limits"`
	Rule         MatchRule  `json:"rule"`
	Tests        []TestCase `json:"tests"`
}

// StatusCode is the terminal per-test verdict, per spec §4.8's mapping
// table.
type StatusCode int32

const (
	StatusAC StatusCode = iota
	StatusWA
	StatusTLE
	StatusMLE
	StatusOLE
	StatusRE
	StatusCE
	StatusSystemError
)

func (s StatusCode) String() string {
	switch s {
	case StatusAC:
		return "AC"
	case StatusWA:
		return "WA"
	case StatusTLE:
		return "TLE"
	case StatusMLE:
		return "MLE"
	case StatusOLE:
		return "OLE"
	case StatusRE:
		return "RE"
	case StatusCE:
		return "CE"
	case StatusSystemError:
		return "SystemError"
	default:
		return "Unknown"
	}
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Index       int32      `json:"index"`
	Status      StatusCode `json:"status"`
	TimeUs      uint64     `json:"time_us"`
	MemoryBytes uint64     `json:"memory_bytes"`
	AccuracyUs  uint64     `json:"accuracy_us"`
	Logs        string     `json:"logs,omitempty"`
}

// JudgeEvent is one event of the Judge RPC's response stream: a
// oneof of CaseStarted(index) or a terminal/per-test CaseResult,
// matching wingthing's SessionMsg oneof-wrapping idiom.
type JudgeEvent struct {
	CaseStarted int32       `json:"case_started,omitempty"`
	Result      *CaseResult `json:"result,omitempty"`
}

// ExecRequest is the single request message of the diagnostic Exec RPC.
type ExecRequest struct {
	LanguageUUID string `json:"language_uuid"`
	SourceCode   []byte `json:"source_code"`
	Stdin        []byte `json:"stdin"`
	Limits       Limits `json:"limits"`
}

// ExecEvent is one event of the Exec RPC's response stream.
type ExecEvent struct {
	CompileLog string `json:"compile_log,omitempty"`
	Output     []byte `json:"output,omitempty"`
}

// InfoRequest is empty: Info() takes no parameters.
type InfoRequest struct{}

// LanguageInfo mirrors lang.LanguageInfo across the wire.
type LanguageInfo struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"display_name"`
}

// InfoResponse is the synchronous snapshot returned by Info().
type InfoResponse struct {
	Languages      []LanguageInfo `json:"languages"`
	TotalMemory    uint64         `json:"total_memory"`
	AccuracyUs     uint64         `json:"accuracy_us"`
	CPUMultiplier  float64        `json:"cpu_multiplier"`
}

// ParseUUID parses LanguageUUID, returning the zero uuid.UUID and a
// non-nil error on malformed input (spec §4.8 step 1's validation).
func (r *JudgeRequest) ParseUUID() (uuid.UUID, error) {
	return uuid.Parse(r.LanguageUUID)
}

// ParseUUID parses LanguageUUID for the Exec RPC.
func (r *ExecRequest) ParseUUID() (uuid.UUID, error) {
	return uuid.Parse(r.LanguageUUID)
}
