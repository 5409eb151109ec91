package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Domenick1991/airseats/api"
	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/service/booking"
	"github.com/Domenick1991/airseats/internal/service/flights"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/ulule/limiter/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Deps struct {
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
	// RateStore backs the limiter on booking writes.
	RateStore limiter.Store
	Log       logrus.FieldLogger
}

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
}

// Run starts the HTTP API and the gRPC health endpoint and blocks until ctx
// is cancelled or a server fails.
func Run(ctx context.Context, cfg *config.Config, deps Deps) error {
	s, err := newServers(cfg, deps)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	deps.Log.WithFields(logrus.Fields{"http": cfg.HTTP.Address, "grpc": cfg.GRPC.Address}).Info("servers started")

	select {
	case err := <-errCh:
		s.grpcServer.Stop()
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.grpcServer.Stop()
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.grpcServer.GracefulStop()
		return nil
	}
}

func newServers(cfg *config.Config, deps Deps) (*Servers, error) {
	router, err := NewRouter(cfg, deps)
	if err != nil {
		return nil, err
	}

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Servers{
		grpcServer: grpcSrv,
		health:     healthSrv,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func NewRouter(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	rate, err := api.ParseRate(cfg.RateLimit.Rate)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), api.Logger(deps.Log), corsMiddleware(cfg.HTTP.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Static("/tickets", cfg.Tickets.Dir)

	if cfg.HTTP.SwaggerDir != "" {
		r.StaticFile("/swagger/doc.json", filepath.Join(cfg.HTTP.SwaggerDir, "swagger.json"))
		r.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))))
	}

	auth := api.Auth(cfg.Auth.JWTSecret)
	group := r.Group("/api")

	flightHandler := api.NewFlightHandler(deps.Flights)
	flightHandler.Register(group.Group("/flights"))
	flightHandler.RegisterAdmin(group.Group("/flights", auth, api.RequireAdmin()))

	bookingHandler := api.NewBookingHandler(deps.Bookings)
	bookingHandler.Register(group.Group("/bookings", auth), api.RateLimit(deps.RateStore, rate))

	return r, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
