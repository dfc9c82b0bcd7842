// Package judgererr is the judger's error taxonomy: the small set of
// kinds a caller of internal/app/judgeserver can observe, and the
// mapping from each kind to a gRPC status code. Grounded on
// ehrlich-b/wingthing's internal/egg/server.go, which wraps every
// caller-visible failure in google.golang.org/grpc/status rather than
// returning a bare error.
package judgererr

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is one of the control-flow error categories of spec §7. Limit,
// runtime, and compile outcomes are data (judgepb.CaseResult codes),
// not Kind values: only failures that abort the RPC before a result is
// produced belong here.
type Kind int

const (
	// Internal covers cgroup/mount/spawn failures: opaque to the caller,
	// logged with full context by the emitting site before wrapping.
	Internal Kind = iota
	// BadRequest covers a malformed uuid, unknown match rule, or unknown
	// language uuid.
	BadRequest
	// ResourceExhausted covers a Byte Budget acquire failure: retryable,
	// no partial run was started.
	ResourceExhausted
	// PermissionDenied covers a missing or mismatched shared-secret
	// Authorization header.
	PermissionDenied
)

// Error is a Kind paired with a human-readable message. It implements
// error and carries enough information for ToStatus to pick the right
// gRPC code without the caller needing to inspect the Kind itself.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New constructs an Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// BadRequestf constructs a BadRequest Error.
func BadRequestf(format string, args ...any) *Error {
	return &Error{Kind: BadRequest, Message: fmt.Sprintf(format, args...)}
}

// Internalf constructs an Internal Error.
func Internalf(format string, args ...any) *Error {
	return &Error{Kind: Internal, Message: fmt.Sprintf(format, args...)}
}

// ResourceExhaustedf constructs a ResourceExhausted Error.
func ResourceExhaustedf(format string, args ...any) *Error {
	return &Error{Kind: ResourceExhausted, Message: fmt.Sprintf(format, args...)}
}

// PermissionDeniedf constructs a PermissionDenied Error.
func PermissionDeniedf(format string, args ...any) *Error {
	return &Error{Kind: PermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// ToStatus maps err to the gRPC status a judgeserver handler should
// return. A non-*Error is always reported as codes.Internal, matching
// wingthing's egg server practice of never letting an unclassified Go
// error escape as a bare gRPC error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	jerr, ok := err.(*Error)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	switch jerr.Kind {
	case BadRequest:
		return status.Error(codes.FailedPrecondition, jerr.Message)
	case ResourceExhausted:
		return status.Error(codes.ResourceExhausted, jerr.Message)
	case PermissionDenied:
		return status.Error(codes.PermissionDenied, jerr.Message)
	default:
		return status.Error(codes.Internal, jerr.Message)
	}
}
