package main

import (
	"errors"
	"flag"
	"time"

	"github.com/muskanmahajan37/gazebo/pkg/transport"
)

// Config holds the publisher configuration.
type Config struct {
	Address     string             `yaml:"address"`
	Topic       string             `yaml:"topic"`
	MsgType     string             `yaml:"msg_type"`
	Message     string             `yaml:"message"`
	Interval    time.Duration      `yaml:"interval"`
	Count       int                `yaml:"count"`
	LogLevel    string             `yaml:"log_level"`
	ProtocolLog string             `yaml:"protocol_log"`
	TLS         transport.TLSFiles `yaml:"tls"`
}

// DefaultConfig returns the configuration used when neither a file nor a
// flag sets a value.
func DefaultConfig() Config {
	return Config{
		Address:  transport.DefaultAddress,
		Message:  "hello",
		Interval: time.Second,
		LogLevel: "info",
	}
}

// RegisterFlags binds the command line flags to c.
func RegisterFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Address, "address", c.Address, "Listen address")
	fs.StringVar(&c.Topic, "topic", c.Topic, "Topic name")
	fs.StringVar(&c.MsgType, "msg-type", c.MsgType, "Message type name")
	fs.StringVar(&c.Message, "message", c.Message, "Payload prefix; a sequence number is appended")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "Delay between payloads")
	fs.IntVar(&c.Count, "count", c.Count, "Payloads per subscriber before closing (0 = unlimited)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.ProtocolLog, "protocol-log", c.ProtocolLog, "File path for protocol event logging (CBOR format)")
	fs.StringVar(&c.TLS.CertFile, "tls-cert", c.TLS.CertFile, "Server certificate (PEM)")
	fs.StringVar(&c.TLS.KeyFile, "tls-key", c.TLS.KeyFile, "Server key (PEM)")
	fs.StringVar(&c.TLS.CAFile, "tls-ca", c.TLS.CAFile, "CA bundle; when set, subscribers must present a certificate")
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.MsgType == "" {
		return errors.New("msg-type is required")
	}
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}
