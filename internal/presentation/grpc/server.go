package grpc

import (
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/bibbank/loginrisk/pkg/auth"
)

// ServiceName is reported by the health service.
const ServiceName = "loginrisk"

// MethodRoles lists the roles allowed to call each method.
var MethodRoles = map[string][]string{
	LoginRiskService_AssessLogin_FullMethodName:      {auth.RoleAdmin, auth.RoleOperator, auth.RoleClient},
	LoginRiskService_GetGuardState_FullMethodName:    {auth.RoleAdmin, auth.RoleOperator, auth.RoleAuditor},
	LoginRiskService_ResetGuard_FullMethodName:       {auth.RoleAdmin, auth.RoleOperator},
	LoginRiskService_ListAuditEntries_FullMethodName: {auth.RoleAdmin, auth.RoleAuditor},
}

// ServerOptions configures the gRPC server. Nil Credentials serves plaintext.
// A zero AssessRateLimit leaves AssessLogin unlimited.
type ServerOptions struct {
	Credentials     credentials.TransportCredentials
	AssessRateLimit int
	Reflection      bool
}

// Server wraps the gRPC server with login risk handlers.
type Server struct {
	address    string
	grpcServer *grpc.Server
	health     *health.Server
	handler    *LoginRiskHandler
	logger     *slog.Logger
}

// NewServer creates a new gRPC server for the login risk service.
func NewServer(handler *LoginRiskHandler, address string, logger *slog.Logger, validator auth.TokenValidator, opts ServerOptions) *Server {
	// Add auth interceptor, skipping health check methods.
	authInterceptor := auth.UnaryAuthInterceptor(validator, []string{
		"/grpc.health.v1.Health/Check",
		"/grpc.health.v1.Health/Watch",
	})

	interceptors := []grpc.UnaryServerInterceptor{authInterceptor, auth.MethodRoles(MethodRoles)}
	if opts.AssessRateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.AssessRateLimit), opts.AssessRateLimit)
		interceptors = append(interceptors, RateLimit(limiter, LoginRiskService_AssessLogin_FullMethodName))
		logger.Info("AssessLogin rate limit enabled", slog.Int("rps", opts.AssessRateLimit))
	}
	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}

	if opts.Credentials != nil {
		serverOpts = append(serverOpts, grpc.Creds(opts.Credentials))
		logger.Info("gRPC TLS enabled")
	} else {
		logger.Info("gRPC TLS not configured, running without TLS")
	}

	grpcServer := grpc.NewServer(serverOpts...)

	// Register health check service.
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	RegisterLoginRiskServiceServer(grpcServer, handler)

	if opts.Reflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		handler:    handler,
		logger:     logger,
		address:    address,
	}
}

// Serve serves gRPC requests on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("gRPC server starting",
		slog.String("address", listener.Addr().String()),
	)
	return s.grpcServer.Serve(listener)
}

// Start begins listening and serving gRPC requests.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(listener)
}

// Stop marks the service as not serving and gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.logger.Info("gRPC server shutting down")
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
}
