package middleware

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
)

// GRPCConfig configures the gRPC interceptors
type GRPCConfig struct {
	// Metadata extraction
	RequestIDMetadata string `json:"request_id_metadata"`
	SourceMetadata    string `json:"source_metadata"`

	// Token bucket shared by all callers; RPS <= 0 disables limiting.
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`

	// Exemptions
	ExemptMethods []string `json:"exempt_methods"`
}

// DefaultGRPCConfig returns default gRPC middleware configuration
func DefaultGRPCConfig() *GRPCConfig {
	return &GRPCConfig{
		RequestIDMetadata: "x-request-id",
		SourceMetadata:    "x-contextguard-source",
		RPS:               100,
		Burst:             200,
		ExemptMethods: []string{
			"/grpc.health.v1.Health/Check",
			"/grpc.health.v1.Health/Watch",
		},
	}
}

// GRPCConfigFromSettings converts the gRPC server section of the application config.
func GRPCConfigFromSettings(cfg config.GRPCServerConfig) *GRPCConfig {
	gc := DefaultGRPCConfig()
	gc.RPS = cfg.RateLimit.RPS
	gc.Burst = cfg.RateLimit.Burst
	return gc
}

type requestIDKey struct{}
type sourceKey struct{}

// RequestIDFromContext returns the request ID set by the logging interceptor.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// SourceFromContext returns the caller-supplied source, if any.
func SourceFromContext(ctx context.Context) string {
	src, _ := ctx.Value(sourceKey{}).(string)
	return src
}

// LoggingInterceptor tags each call with a request ID, taken from metadata
// or generated, echoes it back as a header and logs the outcome.
func LoggingInterceptor(logger *slog.Logger, cfg *GRPCConfig) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultGRPCConfig()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := firstMetadata(ctx, cfg.RequestIDMetadata)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
		if src := firstMetadata(ctx, cfg.SourceMetadata); src != "" {
			ctx = context.WithValue(ctx, sourceKey{}, src)
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(cfg.RequestIDMetadata, requestID))

		resp, err := handler(ctx, req)

		code := status.Code(err)
		attrs := []any{
			"method", info.FullMethod,
			"request_id", requestID,
			"code", code.String(),
			"duration", time.Since(start),
		}
		switch code {
		case codes.OK:
			logger.Debug("grpc request", attrs...)
		case codes.Internal, codes.Unknown, codes.Unavailable:
			logger.Error("grpc request failed", append(attrs, "error", err)...)
		default:
			logger.Warn("grpc request rejected", append(attrs, "error", err)...)
		}
		return resp, err
	}
}

// RateLimitInterceptor rejects calls beyond the configured rate with
// ResourceExhausted. Exempt methods are never limited.
func RateLimitInterceptor(cfg *GRPCConfig) grpc.UnaryServerInterceptor {
	if cfg == nil {
		cfg = DefaultGRPCConfig()
	}
	limiter := newLimiter(cfg)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if limiter != nil && !slices.Contains(cfg.ExemptMethods, info.FullMethod) && !limiter.Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", info.FullMethod)
		}
		return handler(ctx, req)
	}
}

// StreamRateLimitInterceptor applies the same limit when a stream opens.
func StreamRateLimitInterceptor(cfg *GRPCConfig) grpc.StreamServerInterceptor {
	if cfg == nil {
		cfg = DefaultGRPCConfig()
	}
	limiter := newLimiter(cfg)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if limiter != nil && !slices.Contains(cfg.ExemptMethods, info.FullMethod) && !limiter.Allow() {
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", info.FullMethod)
		}
		return handler(srv, ss)
	}
}

func newLimiter(cfg *GRPCConfig) *rate.Limiter {
	if cfg.RPS <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RPS), burst)
}

func firstMetadata(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
