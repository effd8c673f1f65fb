package grpcapi

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"imagecollector/internal/logger"
	"imagecollector/internal/model"
	"imagecollector/internal/service"
)

// Server implements ImageCollectorServer on top of service.ImageService.
type Server struct {
	svc service.ImageService
}

func NewServer(svc service.ImageService) *Server {
	return &Server{svc: svc}
}

var _ ImageCollectorServer = (*Server)(nil)

// NewGRPCServer returns a grpc.Server with the ImageCollector service
// registered and request logging installed.
func NewGRPCServer(svc service.ImageService, log zerolog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryLogger(log))}, opts...)
	s := grpc.NewServer(opts...)
	RegisterImageCollectorServer(s, NewServer(svc))
	return s
}

// CollectImage accepts {url|source_url, file_name?, id?} and returns the
// stored image.
func (s *Server) CollectImage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	src := stringField(in, "url")
	if src == "" {
		src = stringField(in, "source_url")
	}
	req := model.ImageRequest{
		ID:        stringField(in, "id"),
		SourceURL: src,
		FileName:  stringField(in, "file_name"),
	}

	img, err := s.svc.Collect(ctx, req)
	if err != nil {
		if isValidationError(err) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "error processing image: %v", err)
	}
	return imageStruct(img)
}

// GetAllImages returns {images: [...]}.
func (s *Server) GetAllImages(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	items, err := s.svc.ListAll(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "error listing images: %v", err)
	}

	values := make([]*structpb.Value, 0, len(items))
	for i := range items {
		st, err := imageStruct(&items[i])
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(st))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"images": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// GetImageById returns the image for {id} or codes.NotFound.
func (s *Server) GetImageById(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(in, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	img, err := s.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "image with id %s not found", id)
		}
		return nil, status.Errorf(codes.Internal, "error getting image: %v", err)
	}
	return imageStruct(img)
}

func isValidationError(err error) bool {
	return errors.Is(err, model.ErrSourceURLRequired) ||
		errors.Is(err, model.ErrInvalidSourceURL) ||
		errors.Is(err, model.ErrInvalidFileName)
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func imageStruct(img *model.Image) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(map[string]any{
		"id":           img.ID,
		"url":          img.SourceURL,
		"file_name":    img.FileName,
		"content_type": img.ContentType,
		"size":         img.SizeBytes,
		"created_at":   img.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode image: %v", err)
	}
	return st, nil
}

// UnaryLogger logs one line per unary call with method, status code and
// latency in milliseconds. Internal and unknown codes log at error level.
func UnaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	log = logger.Component(log, "grpc")

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		ev := log.Info()
		switch code {
		case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss:
			ev = log.Error()
		}
		ev.Str("event", "grpc_request").
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Send()

		return resp, err
	}
}
