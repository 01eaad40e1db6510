package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muskanmahajan37/gazebo/pkg/log"
	"github.com/muskanmahajan37/gazebo/pkg/metrics"
)

// OpenProtocolLog returns the protocol event sink for a command. Events
// always go to logger at debug level; when path is set they are also
// appended to that file. The returned close func flushes the file.
func OpenProtocolLog(path string, logger *slog.Logger) (log.Logger, func() error, error) {
	console := log.NewSlogAdapter(logger)
	if path == "" {
		return console, func() error { return nil }, nil
	}

	file, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open protocol log: %w", err)
	}
	logger.Info("protocol logging enabled", "path", path)
	return log.Tee(file, console), file.Close, nil
}

// MetricsServer exposes a Prometheus registry over HTTP.
type MetricsServer struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// ServeMetrics listens on addr and serves /metrics from reg until Stop.
func ServeMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	m := &MetricsServer{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	return m, nil
}

// Addr returns the bound listen address.
func (m *MetricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Stop shuts the server down and waits for it to exit.
func (m *MetricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
	<-m.done
}
