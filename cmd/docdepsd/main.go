// docdepsd gRPC Server
// Serves dependency resolution over a hot-reloaded document corpus
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/docdeps/internal/config"
	"github.com/nainya/docdeps/internal/corpus"
	"github.com/nainya/docdeps/internal/logger"
	"github.com/nainya/docdeps/internal/metrics"
	"github.com/nainya/docdeps/internal/server"
)

const Version = "1.0.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath  string
		corpusPath  string
		grpcPort    int
		metricsPort int
		logLevel    string
		noWatch     bool
	)

	cmd := &cobra.Command{
		Use:          "docdepsd",
		Short:        "Serve document dependency resolution over gRPC",
		Version:      Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("corpus") {
				cfg.Corpus.Path = corpusPath
			}
			if flags.Changed("grpc-port") {
				cfg.Server.GRPCPort = grpcPort
			}
			if flags.Changed("metrics-port") {
				cfg.Server.MetricsPort = metricsPort
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if noWatch {
				cfg.Corpus.Watch = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&corpusPath, "corpus", "", "Corpus file (JSON array of documents)")
	flags.IntVar(&grpcPort, "grpc-port", 0, "gRPC listen port")
	flags.IntVar(&metricsPort, "metrics-port", 0, "Observability HTTP port (0 disables)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&noWatch, "no-watch", false, "Do not reload the corpus when it changes")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	log := logger.GetGlobalLogger()
	log.LogServerStart(cfg.Server.GRPCPort, cfg.Corpus.Path)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	holder := corpus.NewHolder(cfg.Corpus.Path, log, m)
	if err := holder.Load(); err != nil {
		return err
	}

	if cfg.Corpus.Watch {
		watcher, err := corpus.NewWatcher(holder, cfg.Corpus.Debounce, log)
		if err != nil {
			return fmt.Errorf("watch corpus: %w", err)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	defaults, err := cfg.ResolveOptions()
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
	)
	srv := server.NewServer(holder, defaults, log, m)
	srv.Register(grpcServer)

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	var obs *server.ObservabilityServer
	if cfg.Server.MetricsPort > 0 {
		obs = server.NewObservabilityServer(cfg.Server.MetricsPort, prometheus.DefaultGatherer, func() bool {
			return holder.Store() != nil
		}, log)
		go func() {
			if err := obs.Start(); err != nil {
				log.Error("observability server stopped").Err(err).Send()
			}
		}()
	}

	go func() {
		<-ctx.Done()
		log.LogServerShutdown()
		srv.Shutdown()
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
		grpcServer.GracefulStop()
	}()

	log.LogServerReady(cfg.Server.GRPCPort)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
