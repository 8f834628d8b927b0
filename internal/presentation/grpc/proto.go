package grpc

// proto.go defines the gRPC server interface derived from loginrisk/v1/loginrisk.proto.
// This file serves as a stand-in for buf-generated code. Once `buf generate` is run,
// replace this file with the generated package.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Full method names.
const (
	LoginRiskService_AssessLogin_FullMethodName      = "/loginrisk.v1.LoginRiskService/AssessLogin"
	LoginRiskService_GetGuardState_FullMethodName    = "/loginrisk.v1.LoginRiskService/GetGuardState"
	LoginRiskService_ResetGuard_FullMethodName       = "/loginrisk.v1.LoginRiskService/ResetGuard"
	LoginRiskService_ListAuditEntries_FullMethodName = "/loginrisk.v1.LoginRiskService/ListAuditEntries"
)

// LoginRiskServiceServer is the server API for LoginRiskService.
type LoginRiskServiceServer interface {
	AssessLogin(context.Context, *AssessLoginRequest) (*AssessLoginResponse, error)
	GetGuardState(context.Context, *GetGuardStateRequest) (*GetGuardStateResponse, error)
	ResetGuard(context.Context, *ResetGuardRequest) (*ResetGuardResponse, error)
	ListAuditEntries(context.Context, *ListAuditEntriesRequest) (*ListAuditEntriesResponse, error)
	mustEmbedUnimplementedLoginRiskServiceServer()
}

// UnimplementedLoginRiskServiceServer provides forward-compatible default implementations.
type UnimplementedLoginRiskServiceServer struct{}

func (UnimplementedLoginRiskServiceServer) AssessLogin(context.Context, *AssessLoginRequest) (*AssessLoginResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AssessLogin not implemented")
}
func (UnimplementedLoginRiskServiceServer) GetGuardState(context.Context, *GetGuardStateRequest) (*GetGuardStateResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetGuardState not implemented")
}
func (UnimplementedLoginRiskServiceServer) ResetGuard(context.Context, *ResetGuardRequest) (*ResetGuardResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ResetGuard not implemented")
}
func (UnimplementedLoginRiskServiceServer) ListAuditEntries(context.Context, *ListAuditEntriesRequest) (*ListAuditEntriesResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListAuditEntries not implemented")
}
func (UnimplementedLoginRiskServiceServer) mustEmbedUnimplementedLoginRiskServiceServer() {}

// RegisterLoginRiskServiceServer registers the LoginRiskServiceServer with the gRPC server.
func RegisterLoginRiskServiceServer(s grpclib.ServiceRegistrar, srv LoginRiskServiceServer) {
	s.RegisterService(&_LoginRiskService_serviceDesc, srv)
}

var _LoginRiskService_serviceDesc = grpclib.ServiceDesc{
	ServiceName: "loginrisk.v1.LoginRiskService",
	HandlerType: (*LoginRiskServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "AssessLogin", Handler: _LoginRiskService_AssessLogin_Handler},
		{MethodName: "GetGuardState", Handler: _LoginRiskService_GetGuardState_Handler},
		{MethodName: "ResetGuard", Handler: _LoginRiskService_ResetGuard_Handler},
		{MethodName: "ListAuditEntries", Handler: _LoginRiskService_ListAuditEntries_Handler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "loginrisk/v1/loginrisk.proto",
}

func _LoginRiskService_AssessLogin_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(AssessLoginRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoginRiskServiceServer).AssessLogin(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: LoginRiskService_AssessLogin_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoginRiskServiceServer).AssessLogin(ctx, req.(*AssessLoginRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoginRiskService_GetGuardState_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(GetGuardStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoginRiskServiceServer).GetGuardState(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: LoginRiskService_GetGuardState_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoginRiskServiceServer).GetGuardState(ctx, req.(*GetGuardStateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoginRiskService_ResetGuard_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(ResetGuardRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoginRiskServiceServer).ResetGuard(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: LoginRiskService_ResetGuard_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoginRiskServiceServer).ResetGuard(ctx, req.(*ResetGuardRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoginRiskService_ListAuditEntries_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(ListAuditEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoginRiskServiceServer).ListAuditEntries(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: LoginRiskService_ListAuditEntries_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoginRiskServiceServer).ListAuditEntries(ctx, req.(*ListAuditEntriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// LoginRiskServiceClient is the client API for LoginRiskService.
type LoginRiskServiceClient interface {
	AssessLogin(ctx context.Context, in *AssessLoginRequest, opts ...grpclib.CallOption) (*AssessLoginResponse, error)
	GetGuardState(ctx context.Context, in *GetGuardStateRequest, opts ...grpclib.CallOption) (*GetGuardStateResponse, error)
	ResetGuard(ctx context.Context, in *ResetGuardRequest, opts ...grpclib.CallOption) (*ResetGuardResponse, error)
	ListAuditEntries(ctx context.Context, in *ListAuditEntriesRequest, opts ...grpclib.CallOption) (*ListAuditEntriesResponse, error)
}

type loginRiskServiceClient struct {
	cc grpclib.ClientConnInterface
}

// NewLoginRiskServiceClient returns a client that sends the JSON content-subtype.
func NewLoginRiskServiceClient(cc grpclib.ClientConnInterface) LoginRiskServiceClient {
	return &loginRiskServiceClient{cc: cc}
}

func (c *loginRiskServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpclib.CallOption) error {
	opts = append([]grpclib.CallOption{grpclib.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *loginRiskServiceClient) AssessLogin(ctx context.Context, in *AssessLoginRequest, opts ...grpclib.CallOption) (*AssessLoginResponse, error) {
	out := new(AssessLoginResponse)
	if err := c.invoke(ctx, LoginRiskService_AssessLogin_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loginRiskServiceClient) GetGuardState(ctx context.Context, in *GetGuardStateRequest, opts ...grpclib.CallOption) (*GetGuardStateResponse, error) {
	out := new(GetGuardStateResponse)
	if err := c.invoke(ctx, LoginRiskService_GetGuardState_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loginRiskServiceClient) ResetGuard(ctx context.Context, in *ResetGuardRequest, opts ...grpclib.CallOption) (*ResetGuardResponse, error) {
	out := new(ResetGuardResponse)
	if err := c.invoke(ctx, LoginRiskService_ResetGuard_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loginRiskServiceClient) ListAuditEntries(ctx context.Context, in *ListAuditEntriesRequest, opts ...grpclib.CallOption) (*ListAuditEntriesResponse, error) {
	out := new(ListAuditEntriesResponse)
	if err := c.invoke(ctx, LoginRiskService_ListAuditEntries_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
