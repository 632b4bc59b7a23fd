package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/dikanevn/bf/logging"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/grpcstore"
	"github.com/dikanevn/bf/storage/storeregistry"

	_ "github.com/dikanevn/bf/storage/badgerstore"
	_ "github.com/dikanevn/bf/storage/localfs"
	_ "github.com/dikanevn/bf/storage/memstore"
	_ "github.com/dikanevn/bf/storage/pebblestore"
	_ "github.com/dikanevn/bf/storage/redisstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bf-ledgerd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "Ledger store backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	metricsListen := fs.String("metrics-listen", "", "Prometheus /metrics address; disabled when empty")
	var logCfg logging.Config
	fs.StringVar(&logCfg.Level, "log-level", "info", "Log level")
	fs.StringVar(&logCfg.Format, "log-format", "json", "Log format: json or console")
	fs.StringVar(&logCfg.File, "log-file", "", "Also write logs to this rotated file")

	storeregistry.RegisterFlags(fs, storeregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range storeregistry.List(storeregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	logger, logCloser, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() {
		_ = logger.Sync()
		_ = logCloser.Close()
	}()

	store, closeFn, err := storeregistry.Open(*backend, storeregistry.UsageDaemon)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	reg := prometheus.NewRegistry()
	metrics, err := newRPCMetrics(reg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if *metricsListen != "" {
		srv := startMetricsServer(*metricsListen, reg, logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	logger.Info("bf-ledgerd listening", zap.String("addr", lis.Addr().String()), zap.String("backend", *backend))
	if err := serve(ctx, lis, store, logger, metrics); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

// serve runs the Store service on lis until ctx is done.
func serve(ctx context.Context, lis net.Listener, store storage.Store, logger *zap.Logger, metrics *rpcMetrics) error {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(metrics.intercept))
	grpcstore.RegisterStoreServer(s, &grpcstore.Server{Store: store, Logger: logger})

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(lis) }()
	select {
	case <-ctx.Done():
		s.GracefulStop()
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

type rpcMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRPCMetrics(reg prometheus.Registerer) (*rpcMetrics, error) {
	m := &rpcMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bf_ledgerd_requests_total",
			Help: "Store RPCs served, by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bf_ledgerd_request_duration_seconds",
			Help:    "Store RPC latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"method"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *rpcMetrics) intercept(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	m.requests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	m.duration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	return resp, err
}
