package main

import (
	"errors"
	"flag"

	"github.com/muskanmahajan37/gazebo/pkg/transport"
)

// Config holds the subscriber configuration.
type Config struct {
	Address         string             `yaml:"address"`
	Master          string             `yaml:"master"`
	Topic           string             `yaml:"topic"`
	MsgType         string             `yaml:"msg_type"`
	Count           int                `yaml:"count"`
	Hex             bool               `yaml:"hex"`
	ConnectAttempts int                `yaml:"connect_attempts"`
	LogLevel        string             `yaml:"log_level"`
	ProtocolLog     string             `yaml:"protocol_log"`
	MetricsAddr     string             `yaml:"metrics_addr"`
	TLS             transport.TLSFiles `yaml:"tls"`
}

// DefaultConfig returns the configuration used when neither a file nor a
// flag sets a value.
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1" + transport.DefaultAddress,
		ConnectAttempts: 5,
		LogLevel:        "info",
	}
}

// RegisterFlags binds the command line flags to c.
func RegisterFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Address, "address", c.Address, "Publisher address")
	fs.StringVar(&c.Master, "master", c.Master, "Master address that receives subscribe announcements")
	fs.StringVar(&c.Topic, "topic", c.Topic, "Topic name")
	fs.StringVar(&c.MsgType, "msg-type", c.MsgType, "Message type name")
	fs.IntVar(&c.Count, "count", c.Count, "Exit after this many payloads (0 = unlimited)")
	fs.BoolVar(&c.Hex, "hex", c.Hex, "Print payloads as hex")
	fs.IntVar(&c.ConnectAttempts, "connect-attempts", c.ConnectAttempts, "Connection attempts before giving up")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.ProtocolLog, "protocol-log", c.ProtocolLog, "File path for protocol event logging (CBOR format)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.StringVar(&c.TLS.CertFile, "tls-cert", c.TLS.CertFile, "Client certificate (PEM)")
	fs.StringVar(&c.TLS.KeyFile, "tls-key", c.TLS.KeyFile, "Client key (PEM)")
	fs.StringVar(&c.TLS.CAFile, "tls-ca", c.TLS.CAFile, "CA bundle used to verify the publisher (PEM)")
	fs.StringVar(&c.TLS.ServerName, "tls-server-name", c.TLS.ServerName, "Expected publisher server name")
	fs.BoolVar(&c.TLS.InsecureSkipVerify, "tls-insecure", c.TLS.InsecureSkipVerify, "Skip publisher verification (testing only)")
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.MsgType == "" {
		return errors.New("msg-type is required")
	}
	if c.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}
