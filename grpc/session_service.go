package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const (
	SessionServiceName                          = "vcf.v1.SessionService"
	SessionService_CreateSession_FullMethodName = "/vcf.v1.SessionService/CreateSession"
	SessionService_GetSession_FullMethodName    = "/vcf.v1.SessionService/GetSession"
	SessionService_AddContact_FullMethodName    = "/vcf.v1.SessionService/AddContact"
)

type CreateSessionRequest struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

type CreateSessionResponse struct {
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Duration  int       `json:"duration"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type GetSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type GetSessionResponse struct {
	Name      string    `json:"name"`
	Duration  int       `json:"duration"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AddContactRequest struct {
	SessionID string `json:"sessionId"`
	FullName  string `json:"fullName"`
	Phone     string `json:"phone"`
}

type AddContactResponse struct {
	Success bool `json:"success"`
}

type SessionServiceServer interface {
	CreateSession(context.Context, *CreateSessionRequest) (*CreateSessionResponse, error)
	GetSession(context.Context, *GetSessionRequest) (*GetSessionResponse, error)
	AddContact(context.Context, *AddContactRequest) (*AddContactResponse, error)
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

// SessionService_ServiceDesc is written by hand: messages are plain Go
// structs carried by the JSON codec.
var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: createSessionHandler},
		{MethodName: "GetSession", Handler: getSessionHandler},
		{MethodName: "AddContact", Handler: addContactHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vcf/v1/session.json",
}

func createSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).CreateSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionService_CreateSession_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).CreateSession(ctx, req.(*CreateSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionService_GetSession_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).GetSession(ctx, req.(*GetSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func addContactHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddContactRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).AddContact(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionService_AddContact_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).AddContact(ctx, req.(*AddContactRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SessionServiceClient calls the service over a connection that negotiates
// the JSON codec.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func (c *SessionServiceClient) CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*CreateSessionResponse, error) {
	out := new(CreateSessionResponse)
	if err := c.cc.Invoke(ctx, SessionService_CreateSession_FullMethodName, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionServiceClient) GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error) {
	out := new(GetSessionResponse)
	if err := c.cc.Invoke(ctx, SessionService_GetSession_FullMethodName, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionServiceClient) AddContact(ctx context.Context, in *AddContactRequest, opts ...grpc.CallOption) (*AddContactResponse, error) {
	out := new(AddContactResponse)
	if err := c.cc.Invoke(ctx, SessionService_AddContact_FullMethodName, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
}
