package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "receipts.v1.ParserService"

// ParserServer is the server API for receipts.v1.ParserService. Every
// payload is a google.protobuf.Struct whose fields mirror the JSON shape
// of the corresponding Go type.
type ParserServer interface {
	Parse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ParseFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReceipt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListReceipts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportReceipts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(ParserServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ParserServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ParserServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for receipts.v1.ParserService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ParserServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Parse", ParserServer.Parse),
		unary("ParseFile", ParserServer.ParseFile),
		unary("GetReceipt", ParserServer.GetReceipt),
		unary("ListReceipts", ParserServer.ListReceipts),
		unary("ResolveReview", ParserServer.ResolveReview),
		unary("ExportReceipts", ParserServer.ExportReceipts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "receipts/v1/parser.proto",
}

func RegisterParserServer(s grpc.ServiceRegistrar, srv ParserServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls receipts.v1.ParserService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method with a raw Struct payload.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Do encodes req, calls method and decodes the reply into resp.
func (c *Client) Do(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out, err := c.Call(ctx, method, in, opts...)
	if err != nil {
		return err
	}
	return fromStruct(out, resp)
}
