package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// Dial opens a topic stream to a publisher at address. A context without
// a deadline is bounded by config.ConnectTimeout.
func Dial(ctx context.Context, address string, config ConnectionConfig) (*Connection, error) {
	config.applyDefaults()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	conn, err := secure(ctx, raw, config.TLSConfig, tls.Client)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewConnection(conn, config), nil
}

// secure upgrades raw to TLS when conf is set. raw is closed on failure.
func secure(ctx context.Context, raw net.Conn, conf *tls.Config, wrap func(net.Conn, *tls.Config) *tls.Conn) (net.Conn, error) {
	if conf == nil {
		return raw, nil
	}
	tc := wrap(raw, conf)
	if err := tc.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("TLS handshake: %w", err)
	}
	if err := VerifyConnection(tc.ConnectionState()); err != nil {
		tc.Close()
		return nil, err
	}
	return tc, nil
}
