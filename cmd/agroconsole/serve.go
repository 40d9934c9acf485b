package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"agroconsole/internal/adapters/exports"
	"agroconsole/internal/adapters/httpapi"
	"agroconsole/internal/blob"
	"agroconsole/internal/core"
	"agroconsole/internal/platform/otel"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, metrics and the export worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTPAddr = addr
			}
			ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", a.cfg.HTTPAddr, err)
			}
			return a.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	return cmd
}

// server bundles what serve starts so it can be torn down in order.
type server struct {
	svc             *core.Service
	worker          *exports.Worker
	handler         http.Handler
	shutdownTracing func(context.Context) error
}

// setupTracing is swapped in tests to observe teardown.
var setupTracing = otel.Setup

// buildServer wires storage, exports and the HTTP surface. On error every
// piece already started is released.
func (a *app) buildServer(ctx context.Context) (_ *server, err error) {
	shutdownTracing, err := setupTracing(ctx, "agroconsole", a.cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, shutdownTracing(ctx))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, err
	}
	svc, err := a.openService(ctx, true,
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOtelTracer("agroconsole")),
		core.WithAuditRecorder(core.NewZapAuditRecorder(a.logger)),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, svc.Close())
		}
	}()

	artifacts, err := blob.Open(ctx, a.cfg.BlobConfig())
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	renderer := exports.NewRenderer(svc)
	worker := exports.NewWorker(renderer,
		exports.NewBlobObjectStore(artifacts, a.cfg.ExportURLExpiry),
		exports.NewZapAuditLogger(a.logger),
		exports.WithQueueSize(a.cfg.ExportQueueSize),
		exports.WithWorkerLogger(a.logger),
	)

	opts := []httpapi.Option{
		httpapi.WithExports(worker),
		httpapi.WithRenderer(renderer),
		httpapi.WithLogger(a.logger.Named("http")),
	}
	if a.cfg.AuthEnabled() {
		auth, authErr := httpapi.NewAuthenticator(a.cfg.JWTSecret, a.cfg.JWTIssuer)
		if authErr != nil {
			return nil, authErr
		}
		opts = append(opts, httpapi.WithAuth(auth))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", httpapi.NewHandler(svc, opts...))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return &server{svc: svc, worker: worker, handler: mux, shutdownTracing: shutdownTracing}, nil
}

// close stops the worker, flushes spans and closes storage.
func (s *server) close(ctx context.Context) error {
	return multierr.Combine(
		s.worker.Stop(ctx),
		s.shutdownTracing(ctx),
		s.svc.Close(),
	)
}

func (a *app) serve(ctx context.Context, ln net.Listener) error {
	s, err := a.buildServer(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}
	s.worker.Start()

	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.logger.Info("serving", zap.String("addr", ln.Addr().String()),
		zap.String("storage", a.cfg.Storage.Driver), zap.String("blob", a.cfg.Blob.Driver),
		zap.Bool("auth", a.cfg.AuthEnabled()))

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Combine(serveErr, srv.Shutdown(shutdownCtx), s.close(shutdownCtx))
	a.logger.Info("stopped")
	return err
}
