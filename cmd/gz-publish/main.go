// Command gz-publish is a demo publisher. It accepts subscriber
// connections, reads each subscriber's "sub" announcement and streams
// payload frames on the configured topic.
//
// Usage:
//
//	gz-publish [flags]
//
// Examples:
//
//	# Publish a counter on /demo every 100ms
//	gz-publish -topic /demo -msg-type gazebo.msgs.Any -interval 100ms
//
//	# Serve over TLS with client certificates
//	gz-publish -config pub.yaml -tls-cert pub.pem -tls-key pub.key -tls-ca ca.pem
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/muskanmahajan37/gazebo/internal/cli"
)

func main() {
	cfg := DefaultConfig()
	if _, err := cli.Parse("gz-publish", os.Args[1:], &cfg, RegisterFlags); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger, err := cli.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	plog, closeLog, err := cli.OpenProtocolLog(cfg.ProtocolLog, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, err := NewPublisher(cfg, logger, plog)
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}
	if err := pub.Start(ctx); err != nil {
		logger.Error("failed to start publisher", "error", err)
		os.Exit(1)
	}
	logger.Info("publishing", "addr", pub.Addr(), "topic", cfg.Topic, "msg_type", cfg.MsgType)

	<-ctx.Done()
	logger.Info("shutting down")
	pub.Stop()
}
