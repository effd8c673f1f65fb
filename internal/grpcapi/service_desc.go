// Package grpcapi exposes the image use cases as the imagecollector.ImageCollector
// gRPC service. Messages are google.protobuf.Struct so no generated code is
// needed on either side.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "imagecollector.ImageCollector"

// Full method names, as seen by interceptors and clients.
const (
	MethodCollectImage = "/" + ServiceName + "/CollectImage"
	MethodGetAllImages = "/" + ServiceName + "/GetAllImages"
	MethodGetImageByID = "/" + ServiceName + "/GetImageById"
)

// ImageCollectorServer is the server API for the ImageCollector service.
type ImageCollectorServer interface {
	CollectImage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetAllImages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetImageById(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the ImageCollector service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ImageCollectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CollectImage", Handler: unary(MethodCollectImage, ImageCollectorServer.CollectImage)},
		{MethodName: "GetAllImages", Handler: unary(MethodGetAllImages, ImageCollectorServer.GetAllImages)},
		{MethodName: "GetImageById", Handler: unary(MethodGetImageByID, ImageCollectorServer.GetImageById)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "imagecollector/images.proto",
}

// RegisterImageCollectorServer registers srv on s.
func RegisterImageCollectorServer(s grpc.ServiceRegistrar, srv ImageCollectorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryCall func(ImageCollectorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ImageCollectorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ImageCollectorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client is a thin caller for the ImageCollector service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CollectImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCollectImage, in, opts...)
}

func (c *Client) GetAllImages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetAllImages, in, opts...)
}

func (c *Client) GetImageById(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetImageByID, in, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
