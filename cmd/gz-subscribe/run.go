package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muskanmahajan37/gazebo/internal/cli"
	"github.com/muskanmahajan37/gazebo/pkg/connection"
	"github.com/muskanmahajan37/gazebo/pkg/log"
	"github.com/muskanmahajan37/gazebo/pkg/metrics"
	"github.com/muskanmahajan37/gazebo/pkg/subscription"
	"github.com/muskanmahajan37/gazebo/pkg/topic"
	"github.com/muskanmahajan37/gazebo/pkg/transport"
)

// Run subscribes with cfg and prints payloads to out until ctx is done,
// cfg.Count payloads arrived, or the publisher goes away.
func Run(ctx context.Context, cfg Config, out, logOut io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cli.NewLogger(logOut, cfg.LogLevel)
	if err != nil {
		return err
	}

	plog, closeLog, err := cli.OpenProtocolLog(cfg.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	connCfg := transport.DefaultConnectionConfig()
	connCfg.Logger = plog
	connCfg.Role = log.RoleSubscriber
	if cfg.TLS.Enabled() {
		connCfg.TLSConfig, err = transport.NewClientTLSConfig(cfg.TLS)
		if err != nil {
			return err
		}
	}

	mcfg := connection.DefaultManagerConfig()
	mcfg.MaxAttempts = cfg.ConnectAttempts
	mcfg.Connection = connCfg
	mcfg.Logger = logger
	conns := connection.NewManager(mcfg)
	defer conns.Close()

	if cfg.Master != "" {
		master, err := conns.ConnectToRemote(ctx, cfg.Master)
		if err != nil {
			return fmt.Errorf("connect to master: %w", err)
		}
		if err := conns.SetMaster(master); err != nil {
			return err
		}
	}

	var collector metrics.Collector = metrics.NewNop()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector = metrics.NewPrometheus(reg, "")
		srv, err := cli.ServeMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer srv.Stop()
	}

	subs := subscription.NewManagerWithConfig(subscription.Config{
		MaxSubscriptions: 1,
		Dialer:           conns,
		EndpointOptions: []subscription.Option{
			subscription.WithTopicRegistry(topic.NewManager(logger)),
			subscription.WithConnectionRegistry(conns),
			subscription.WithLogger(logger),
			subscription.WithProtocolLogger(plog),
			subscription.WithMetrics(collector),
		},
	})
	defer subs.ClearAll()

	var (
		received  atomic.Int64
		doneOnce  sync.Once
		done      = make(chan struct{})
		closeDone = func() { doneOnce.Do(func() { close(done) }) }
	)

	ep, err := subs.Subscribe(ctx, cfg.Address, cfg.Topic, cfg.MsgType, func(payload []byte) {
		printPayload(out, cfg.Hex, payload)
		if n := received.Add(1); cfg.Count > 0 && n >= int64(cfg.Count) {
			closeDone()
		}
	})
	if err != nil {
		return err
	}

	var (
		goneOnce sync.Once
		gone     = make(chan struct{})
	)
	if conn := ep.Connection(); conn != nil {
		conn.ConnectToShutdown(func() {
			goneOnce.Do(func() { close(gone) })
		})
	} else {
		close(gone)
	}

	logger.Info("subscribed",
		"endpoint_id", ep.ID(),
		"topic", ep.Topic(),
		"msg_type", ep.MsgType(),
		"address", cfg.Address)

	select {
	case <-ctx.Done():
		logger.Info("interrupted", "received", received.Load())
	case <-done:
		logger.Info("received requested payloads", "received", received.Load())
	case <-gone:
		logger.Warn("publisher closed the connection", "received", received.Load())
	}
	return nil
}

func printPayload(w io.Writer, asHex bool, payload []byte) {
	if asHex {
		fmt.Fprintln(w, hex.EncodeToString(payload))
		return
	}
	fmt.Fprintf(w, "%s\n", payload)
}
