// Command gz-subscribe subscribes to a topic on a publisher and prints
// every payload it receives.
//
// Usage:
//
//	gz-subscribe [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-address string       Publisher address (default "127.0.0.1:11345")
//	-master string        Master address that receives subscribe announcements
//	-topic string         Topic name
//	-msg-type string      Message type name
//	-count int            Exit after this many payloads (0 = unlimited)
//	-hex                  Print payloads as hex
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-metrics-addr string  Serve Prometheus metrics on this address
//
// Examples:
//
//	# Print ten pose messages
//	gz-subscribe -topic /world/pose -msg-type gazebo.msgs.Pose -count 10
//
//	# Use a config file and log protocol events
//	gz-subscribe -config sub.yaml -protocol-log sub.glog
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
	if _, err := cli.Parse("gz-subscribe", os.Args[1:], &cfg, RegisterFlags); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
