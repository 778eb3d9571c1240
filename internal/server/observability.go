package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/nainya/docdeps/internal/logger"
	"github.com/nainya/docdeps/internal/metrics"
)

// GrpcMetricsInterceptor records every unary RPC in m and logs it
// through a per-method GrpcLogger.
func GrpcMetricsInterceptor(m *metrics.Metrics, log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		m.GrpcRequestsInFlight.Inc()
		defer m.GrpcRequestsInFlight.Dec()

		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		m.RecordGrpcRequest(info.FullMethod, outcome, elapsed)

		log.GrpcLogger(info.FullMethod).LogGrpcRequest(elapsed, err)
		return resp, err
	}
}

// ObservabilityServer serves /metrics, /health, /ready and pprof over HTTP
type ObservabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewObservabilityServer builds the HTTP side of docdepsd. Metrics come
// from gatherer; /ready answers 503 while ready reports false.
func NewObservabilityServer(port int, gatherer prometheus.Gatherer, ready func() bool, log *logger.Logger) *ObservabilityServer {
	if log == nil {
		log = logger.Nop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", jsonStatus(http.StatusOK, "healthy"))
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			jsonStatus(http.StatusServiceUnavailable, "corpus not loaded")(w, r)
			return
		}
		jsonStatus(http.StatusOK, "ready")(w, r)
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &ObservabilityServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second, // pprof profile defaults to 30s
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

func jsonStatus(code int, state string) http.HandlerFunc {
	body := fmt.Sprintf(`{"status":%q,"service":"docdeps"}`, state)
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

// Handler returns the route mux
func (o *ObservabilityServer) Handler() http.Handler {
	return o.server.Handler
}

// Start listens on the configured port and serves until Shutdown
func (o *ObservabilityServer) Start() error {
	lis, err := net.Listen("tcp", o.server.Addr)
	if err != nil {
		return fmt.Errorf("observability listen %s: %w", o.server.Addr, err)
	}
	return o.Serve(lis)
}

// Serve serves on lis until Shutdown
func (o *ObservabilityServer) Serve(lis net.Listener) error {
	o.log.Info("observability endpoints available").
		Str("metrics", fmt.Sprintf("http://%s/metrics", lis.Addr())).
		Send()

	err := o.server.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains open requests until ctx expires
func (o *ObservabilityServer) Shutdown(ctx context.Context) error {
	return o.server.Shutdown(ctx)
}
