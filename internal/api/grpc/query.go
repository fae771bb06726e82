package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/query/lexer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type requestIDKey struct{}

// QueryServer implements QueryService over an executor.
type QueryServer struct {
	executor       executor.QueryExecutor
	maxSourceBytes int
	logger         *slog.Logger
}

// NewQueryServer creates a new gRPC query server.
func NewQueryServer(exec executor.QueryExecutor, maxSourceBytes int64, logger *slog.Logger) *QueryServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryServer{
		executor:       exec,
		maxSourceBytes: int(maxSourceBytes),
		logger:         logger,
	}
}

// NewServer creates a grpc.Server with the tmpldb interceptors and the query
// service registered.
func NewServer(qs *QueryServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		RequestIDInterceptor,
		LoggingInterceptor(qs.logger),
	))
	s := grpc.NewServer(opts...)
	RegisterQueryServiceServer(s, qs)
	return s
}

// Execute lexes and runs the request source and returns the output records.
func (s *QueryServer) Execute(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	source := req.GetFields()["source"].GetStringValue()
	if source == "" {
		return nil, status.Error(codes.InvalidArgument, "source is required")
	}
	if s.maxSourceBytes > 0 && len(source) > s.maxSourceBytes {
		return nil, status.Errorf(codes.ResourceExhausted, "source exceeds %d bytes", s.maxSourceBytes)
	}

	lines, err := lexer.Tokenize(source)
	if err != nil {
		return nil, toStatus(err)
	}

	recs, err := s.executor.Execute(ctx, lines)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := EncodeRecords(recs)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode failed", "err", err, "request_id", RequestID(ctx))
		return nil, toStatus(err)
	}
	return out, nil
}

// toStatus maps a lexer or statement error to a gRPC status.
func toStatus(err error) error {
	var lexErr *lexer.LexError
	switch {
	case errors.As(err, &lexErr), tmplerrors.IsSyntax(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case tmplerrors.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case tmplerrors.IsAlreadyExists(err):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// RequestIDInterceptor takes the request ID from the x-request-id metadata
// or generates one, stores it in the context and echoes it in the header.
func RequestIDInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	requestID := extractRequestID(ctx)
	grpc.SetHeader(ctx, metadata.Pairs("x-request-id", requestID))
	return handler(context.WithValue(ctx, requestIDKey{}, requestID), req)
}

// LoggingInterceptor logs each call at debug level, and failures with an
// Internal code at error level.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration", time.Since(start),
			"request_id", RequestID(ctx),
		}
		if code == codes.Internal {
			logger.ErrorContext(ctx, "grpc request failed", append(attrs, "err", err)...)
		} else {
			logger.DebugContext(ctx, "grpc request", attrs...)
		}
		return resp, err
	}
}

// RequestID returns the request ID stored by RequestIDInterceptor.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.New().String()
}
