package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ALPNProtocol identifies the topic stream protocol during TLS negotiation.
const ALPNProtocol = "gazebo-topic/1"

// TLSFiles names the PEM files used to build a TLS configuration.
type TLSFiles struct {
	// CertFile and KeyFile hold this endpoint's certificate and key.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// CAFile holds the CA bundle used to verify the peer.
	CAFile string `yaml:"ca_file"`

	// ServerName is the expected server name (client side only).
	ServerName string `yaml:"server_name"`

	// InsecureSkipVerify disables peer verification. Testing only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Enabled reports whether any TLS material is configured.
func (f TLSFiles) Enabled() bool {
	return f.CertFile != "" || f.CAFile != "" || f.InsecureSkipVerify
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return pool, nil
}

func baseTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		NextProtos: []string{ALPNProtocol},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		SessionTicketsDisabled: true,
	}
}

// NewServerTLSConfig builds a publisher-side TLS configuration. When a CA
// file is given, subscribers must present a certificate signed by it.
func NewServerTLSConfig(f TLSFiles) (*tls.Config, error) {
	if f.CertFile == "" || f.KeyFile == "" {
		return nil, errors.New("server certificate and key are required")
	}
	cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	conf := baseTLSConfig()
	conf.Certificates = []tls.Certificate{cert}

	if f.CAFile != "" {
		pool, err := loadCAPool(f.CAFile)
		if err != nil {
			return nil, err
		}
		conf.ClientCAs = pool
		conf.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return conf, nil
}

// NewClientTLSConfig builds a subscriber-side TLS configuration.
func NewClientTLSConfig(f TLSFiles) (*tls.Config, error) {
	conf := baseTLSConfig()
	conf.ServerName = f.ServerName
	conf.InsecureSkipVerify = f.InsecureSkipVerify

	if f.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load key pair: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	if f.CAFile != "" {
		pool, err := loadCAPool(f.CAFile)
		if err != nil {
			return nil, err
		}
		conf.RootCAs = pool
	}
	return conf, nil
}

// VerifyConnection checks the negotiated TLS parameters.
func VerifyConnection(state tls.ConnectionState) error {
	if state.Version < tls.VersionTLS13 {
		return fmt.Errorf("TLS version %x is below TLS 1.3", state.Version)
	}
	if state.NegotiatedProtocol != ALPNProtocol {
		return fmt.Errorf("ALPN protocol %q is not %q", state.NegotiatedProtocol, ALPNProtocol)
	}
	return nil
}
