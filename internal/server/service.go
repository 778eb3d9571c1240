// Package server implements the docdeps gRPC service
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/docdeps/internal/corpus"
	"github.com/nainya/docdeps/internal/logger"
	"github.com/nainya/docdeps/internal/metrics"
	"github.com/nainya/docdeps/pkg/document"
	"github.com/nainya/docdeps/pkg/resolver"
)

const (
	ServiceName   = "docdeps.v1.DependencyService"
	ResolveMethod = "/" + ServiceName + "/Resolve"
)

// DependencyServiceServer is the server API for the dependency service
type DependencyServiceServer interface {
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func _DependencyService_Resolve_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DependencyServiceServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ResolveMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DependencyServiceServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// DependencyService_ServiceDesc describes the dependency service to grpc.Server
var DependencyService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DependencyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    _DependencyService_Resolve_Handler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// Server resolves dependencies against the holder's current snapshot
type Server struct {
	corpus   *corpus.Holder
	defaults resolver.Options
	log      *logger.Logger
	metrics  *metrics.Metrics
	health   *health.Server
}

// NewServer creates a dependency service. m may be nil.
func NewServer(holder *corpus.Holder, defaults resolver.Options, log *logger.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		corpus:   holder,
		defaults: defaults,
		log:      log,
		metrics:  m,
		health:   health.NewServer(),
	}
}

// Register adds the dependency and health services to grpcServer
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&DependencyService_ServiceDesc, s)
	healthpb.RegisterHealthServer(grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service as not serving
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// Resolve implements DependencyServiceServer
func (s *Server) Resolve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.ResolveDependencies(ctx, req)
	if err != nil {
		return nil, err
	}

	out, err := resp.toStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// ResolveDependencies runs one resolution and returns gRPC status errors
func (s *Server) ResolveDependencies(ctx context.Context, req ResolveRequest) (*ResolveResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	if req.DocID == "" {
		return nil, status.Error(codes.InvalidArgument, "doc_id is required")
	}

	opts, err := s.options(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	store := s.corpus.Store()
	if store == nil {
		return nil, status.Error(codes.Unavailable, "corpus not loaded")
	}

	start := time.Now()
	result, err := resolver.Resolve(store, req.DocID, opts)
	var entries []resolver.Entry
	if err == nil {
		entries, err = resolver.Entries(store, result)
	}

	depCount, missing := 0, 0
	if result != nil {
		depCount, missing = result.Len(), len(result.Missing)
	}
	s.log.LogResolution(req.DocID, string(opts.Category), time.Since(start), depCount, err)
	if s.metrics != nil {
		s.metrics.RecordResolution(string(opts.Category), time.Since(start), depCount, missing, err)
	}

	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "resolve %s: %v", req.DocID, err)
	}

	for _, id := range result.Missing {
		s.log.ResolverLogger(req.DocID, string(opts.Category)).
			Warn("dangling reference skipped").
			Str("ref", id).
			Send()
	}

	return &ResolveResponse{
		Seed:     result.Seed,
		Category: string(result.Category),
		Entries:  entries,
		Missing:  result.Missing,
	}, nil
}

func (s *Server) options(req ResolveRequest) (resolver.Options, error) {
	opts := s.defaults
	if req.Category != "" {
		cat, err := document.ParseCategory(req.Category)
		if err != nil {
			return opts, err
		}
		opts.Category = cat
	}
	if req.OnMissing != "" {
		policy, err := resolver.ParseMissingPolicy(req.OnMissing)
		if err != nil {
			return opts, err
		}
		opts.OnMissing = policy
	}
	if req.MaxDepth != nil {
		if *req.MaxDepth < 0 {
			return opts, fmt.Errorf("max_depth must not be negative, got %d", *req.MaxDepth)
		}
		opts.MaxDepth = *req.MaxDepth
	}
	return opts, nil
}
