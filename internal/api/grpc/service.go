// Package grpc provides the gRPC API for submitting statements to tmpldb.
//
// The service is declared by hand over well-known protobuf types so no
// generated code is needed:
//
//	service tmpldb.v1.QueryService {
//	  rpc Execute(google.protobuf.Struct) returns (google.protobuf.ListValue);
//	}
//
// The request struct carries {"source": string}. The response lists one
// struct per output record, see EncodeRecord.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "tmpldb.v1.QueryService"

	// ExecuteMethod is the full method name of Execute.
	ExecuteMethod = "/" + ServiceName + "/Execute"
)

// QueryServiceServer is the server API for QueryService.
type QueryServiceServer interface {
	Execute(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
}

// QueryServiceClient is the client API for QueryService.
type QueryServiceClient interface {
	Execute(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type queryServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryServiceClient creates a client over cc.
func NewQueryServiceClient(cc grpc.ClientConnInterface) QueryServiceClient {
	return &queryServiceClient{cc: cc}
}

func (c *queryServiceClient) Execute(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ExecuteMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterQueryServiceServer registers srv on s.
func RegisterQueryServiceServer(s grpc.ServiceRegistrar, srv QueryServiceServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecuteMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// QueryServiceDesc describes QueryService for grpc.Server.RegisterService.
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tmpldb/v1/query.proto",
}
