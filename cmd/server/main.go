package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitbaba/internal/auth"
	"github.com/mmynk/splitbaba/internal/config"
	"github.com/mmynk/splitbaba/internal/metrics"
	"github.com/mmynk/splitbaba/internal/middleware"
	"github.com/mmynk/splitbaba/internal/realtime"
	"github.com/mmynk/splitbaba/internal/service"
	"github.com/mmynk/splitbaba/internal/storage/sqlite"
	"github.com/mmynk/splitbaba/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := logging.Setup(os.Stderr, level)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Sessions watch the in-process broker. With AMQP configured, writes go to
	// the exchange and come back through the consumer, so every process sharing
	// the database sees them.
	broker := realtime.NewBroker()
	defer broker.Close()

	var publisher realtime.Publisher = broker
	if cfg.AMQPURL != "" {
		client, err := realtime.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = client

		go func() {
			if err := client.Consume(ctx, broker); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change event consumer stopped", "error", err)
			}
		}()
		logger.Info("AMQP change fan-out enabled", "exchange", cfg.AMQPExchange)
	}

	store, err := sqlite.New(cfg.DBPath, sqlite.WithPublisher(publisher))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DBPath)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	sessions := service.NewSessions(store, broker, logger, m)
	svc := service.NewLedgerService(auth.NewPasswordAuthenticator(store), jwtManager, sessions, cfg.Currency, logger)

	mux := http.NewServeMux()
	path, handler := svc.Handler(connect.WithInterceptors(
		middleware.RequireAuth(jwtManager, service.PublicProcedures...),
		middleware.LoggingInterceptor(logger),
	))
	mux.Handle(path, handler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
		Handler:           h2c.NewHandler(corsMiddleware(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("Shutting down")
		// Closing the sessions ends open Subscribe streams.
		sessions.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
