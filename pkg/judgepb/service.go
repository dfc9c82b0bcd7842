package judgepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	serviceName = "judgepb.Judge"
	methodInfo  = "/judgepb.Judge/Info"
	methodJudge = "/judgepb.Judge/Judge"
	methodExec  = "/judgepb.Judge/Exec"
)

// callOption forces every client call onto the judgepb-json codec.
var callOption = grpc.CallContentSubtype(codecName)

// JudgeServer is the server-side contract of the Streaming Judge
// Service, mirroring the interface shape protoc-gen-go-grpc emits for
// a service with one unary and two server-streaming methods.
type JudgeServer interface {
	Info(context.Context, *InfoRequest) (*InfoResponse, error)
	Judge(*JudgeRequest, Judge_JudgeServer) error
	Exec(*ExecRequest, Judge_ExecServer) error
}

// UnimplementedJudgeServer can be embedded by a JudgeServer
// implementation to satisfy forward compatibility, matching protoc-
// gen-go-grpc's convention.
type UnimplementedJudgeServer struct{}

func (UnimplementedJudgeServer) Info(context.Context, *InfoRequest) (*InfoResponse, error) {
	return nil, errUnimplemented("Info")
}
func (UnimplementedJudgeServer) Judge(*JudgeRequest, Judge_JudgeServer) error {
	return errUnimplemented("Judge")
}
func (UnimplementedJudgeServer) Exec(*ExecRequest, Judge_ExecServer) error {
	return errUnimplemented("Exec")
}

// Judge_JudgeServer is the server-side stream handle for Judge.
type Judge_JudgeServer interface {
	Send(*JudgeEvent) error
	grpc.ServerStream
}

// Judge_ExecServer is the server-side stream handle for Exec.
type Judge_ExecServer interface {
	Send(*ExecEvent) error
	grpc.ServerStream
}

type judgeJudgeServer struct{ grpc.ServerStream }

func (s *judgeJudgeServer) Send(m *JudgeEvent) error { return s.ServerStream.SendMsg(m) }

type judgeExecServer struct{ grpc.ServerStream }

func (s *judgeExecServer) Send(m *ExecEvent) error { return s.ServerStream.SendMsg(m) }

func infoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(InfoRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JudgeServer).Info(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInfo}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JudgeServer).Info(ctx, req.(*InfoRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func judgeStreamHandler(srv any, stream grpc.ServerStream) error {
	req := new(JudgeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(JudgeServer).Judge(req, &judgeJudgeServer{stream})
}

func execStreamHandler(srv any, stream grpc.ServerStream) error {
	req := new(ExecRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(JudgeServer).Exec(req, &judgeExecServer{stream})
}

// ServiceDesc is the grpc.ServiceDesc a server registers JudgeServer
// implementations against, in the shape protoc-gen-go-grpc emits.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*JudgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Info", Handler: infoHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Judge", Handler: judgeStreamHandler, ServerStreams: true},
		{StreamName: "Exec", Handler: execStreamHandler, ServerStreams: true},
	},
	Metadata: "judgepb/judge.proto",
}

// RegisterJudgeServer registers srv against s using ServiceDesc.
func RegisterJudgeServer(s grpc.ServiceRegistrar, srv JudgeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// JudgeClient is the client-side contract, mirroring protoc-gen-go-
// grpc's generated client interface.
type JudgeClient interface {
	Info(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error)
	Judge(ctx context.Context, in *JudgeRequest, opts ...grpc.CallOption) (Judge_JudgeClient, error)
	Exec(ctx context.Context, in *ExecRequest, opts ...grpc.CallOption) (Judge_ExecClient, error)
}

type judgeClient struct {
	cc grpc.ClientConnInterface
}

// NewJudgeClient constructs a JudgeClient bound to cc, always sent with
// the judgepb-json codec's content subtype.
func NewJudgeClient(cc grpc.ClientConnInterface) JudgeClient {
	return &judgeClient{cc: cc}
}

func (c *judgeClient) Info(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error) {
	out := new(InfoResponse)
	opts = append(opts, callOption)
	if err := c.cc.Invoke(ctx, methodInfo, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Judge_JudgeClient is the client-side stream handle for Judge.
type Judge_JudgeClient interface {
	Recv() (*JudgeEvent, error)
	grpc.ClientStream
}

type judgeJudgeClient struct{ grpc.ClientStream }

func (c *judgeJudgeClient) Recv() (*JudgeEvent, error) {
	m := new(JudgeEvent)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *judgeClient) Judge(ctx context.Context, in *JudgeRequest, opts ...grpc.CallOption) (Judge_JudgeClient, error) {
	opts = append(opts, callOption)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodJudge, opts...)
	if err != nil {
		return nil, err
	}
	x := &judgeJudgeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Judge_ExecClient is the client-side stream handle for Exec.
type Judge_ExecClient interface {
	Recv() (*ExecEvent, error)
	grpc.ClientStream
}

type judgeExecClient struct{ grpc.ClientStream }

func (c *judgeExecClient) Recv() (*ExecEvent, error) {
	m := new(ExecEvent)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *judgeClient) Exec(ctx context.Context, in *ExecRequest, opts ...grpc.CallOption) (Judge_ExecClient, error) {
	opts = append(opts, callOption)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], methodExec, opts...)
	if err != nil {
		return nil, err
	}
	x := &judgeExecClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// AuthHeader builds the Authorization metadata pair for the timing-safe
// shared-secret scheme of spec §4.8/§6.
func AuthHeader(secret string) metadata.MD {
	return metadata.Pairs("authorization", "basic "+secret)
}

func errUnimplemented(method string) error {
	return &unimplementedError{method: method}
}

type unimplementedError struct{ method string }

func (e *unimplementedError) Error() string { return "judgepb: method " + e.method + " not implemented" }
