package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muskanmahajan37/gazebo/pkg/log"
	"github.com/muskanmahajan37/gazebo/pkg/topic"
	"github.com/muskanmahajan37/gazebo/pkg/transport"
	"github.com/muskanmahajan37/gazebo/pkg/wire"
)

// Publisher streams payloads to every subscriber that announces itself
// for the configured topic.
type Publisher struct {
	config Config
	logger *slog.Logger
	plog   log.Logger
	topics *topic.Manager
	server *transport.Server

	ctx     context.Context
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup

	subscribers atomic.Int64
}

// NewPublisher builds a publisher from cfg.
func NewPublisher(cfg Config, logger *slog.Logger, plog log.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if plog == nil {
		plog = log.NoopLogger{}
	}

	p := &Publisher{
		config: cfg,
		logger: logger,
		plog:   plog,
		topics: topic.NewManager(logger),
	}

	connCfg := transport.DefaultConnectionConfig()
	connCfg.Logger = plog
	if cfg.TLS.Enabled() {
		tc, err := transport.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		connCfg.TLSConfig = tc
	}

	p.server = transport.NewServer(transport.ServerConfig{
		Address:    cfg.Address,
		Connection: connCfg,
		OnConnect:  p.handleConnection,
		OnDisconnect: func(c *transport.Connection) {
			logger.Debug("subscriber disconnected", "conn_id", c.ConnID(), "remote", c.RemoteAddr())
		},
		OnError: func(err error) {
			logger.Warn("server error", "error", err)
		},
	})
	return p, nil
}

// Start registers the topic and begins accepting subscribers.
func (p *Publisher) Start(ctx context.Context) error {
	if err := p.topics.UpdatePublications(p.config.Topic, p.config.MsgType); err != nil {
		return err
	}
	p.ctx = ctx
	if err := p.server.Start(ctx); err != nil {
		_ = p.topics.Release(p.config.Topic)
		return err
	}
	return nil
}

// Stop closes every subscriber connection and waits for the streams to end.
func (p *Publisher) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	_ = p.server.Stop()
	p.wg.Wait()
	_ = p.topics.Release(p.config.Topic)
}

// Addr returns the listen address.
func (p *Publisher) Addr() net.Addr {
	return p.server.Addr()
}

// Subscribers returns the number of subscribers currently streaming.
func (p *Publisher) Subscribers() int {
	return int(p.subscribers.Load())
}

func (p *Publisher) handleConnection(c *transport.Connection) {
	err := c.AsyncRead(func(data []byte, err error) {
		if err != nil {
			return
		}
		p.onAnnouncement(c, data)
	})
	if err != nil {
		p.logger.Warn("read arm failed", "conn_id", c.ConnID(), "error", err)
		c.Cancel()
	}
}

// onAnnouncement handles the first frame of a connection, which must be
// a "sub" envelope for this publisher's topic.
func (p *Publisher) onAnnouncement(c *transport.Connection, data []byte) {
	sub, kind, err := decodeControl(data)
	if err == nil && kind != wire.KindSubscribe {
		err = fmt.Errorf("expected %q envelope, got %q", wire.KindSubscribe, kind)
	}
	if err == nil {
		err = p.accepts(sub)
	}
	if err != nil {
		p.logger.Warn("rejecting subscriber", "conn_id", c.ConnID(), "error", err)
		p.logError(c, err)
		c.Cancel()
		return
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		c.Cancel()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.logControl(c, kind, sub)
	p.logger.Info("subscriber joined",
		"conn_id", c.ConnID(),
		"topic", sub.Topic,
		"subscriber", sub.Address())

	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	go p.stream(c, stop)
	p.readControl(c, halt)
}

// readControl keeps a read armed so an "unsubscribe" envelope or a
// disconnect ends the stream.
func (p *Publisher) readControl(c *transport.Connection, halt func()) {
	err := c.AsyncRead(func(data []byte, err error) {
		if err != nil {
			halt()
			return
		}
		sub, kind, derr := decodeControl(data)
		if derr == nil && kind == wire.KindUnsubscribe {
			p.logControl(c, kind, sub)
			p.logger.Info("subscriber left", "conn_id", c.ConnID(), "subscriber", sub.Address())
			halt()
			return
		}
		if derr != nil {
			p.logger.Debug("ignoring frame", "conn_id", c.ConnID(), "error", derr)
		}
		p.readControl(c, halt)
	})
	if err != nil {
		halt()
	}
}

func (p *Publisher) stream(c *transport.Connection, stop <-chan struct{}) {
	defer p.wg.Done()
	p.subscribers.Add(1)
	defer p.subscribers.Add(-1)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for seq := 1; p.config.Count == 0 || seq <= p.config.Count; {
		select {
		case <-stop:
			_ = c.Close()
			return
		case <-c.Done():
			return
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}

		payload := []byte(fmt.Sprintf("%s %d", p.config.Message, seq))
		switch err := c.EnqueueMsg(payload); {
		case err == nil:
			seq++
		case errors.Is(err, transport.ErrWriteQueueFull):
			p.logger.Debug("subscriber is slow, skipping payload", "conn_id", c.ConnID(), "seq", seq)
		default:
			return
		}
	}
	_ = c.Close()
}

func (p *Publisher) accepts(sub *wire.Subscribe) error {
	if sub.Topic != p.config.Topic {
		return fmt.Errorf("unknown topic %q", sub.Topic)
	}
	if sub.MsgType != p.config.MsgType {
		return fmt.Errorf("topic %s carries %s, not %s", sub.Topic, p.config.MsgType, sub.MsgType)
	}
	return nil
}

func decodeControl(data []byte) (*wire.Subscribe, string, error) {
	pkt, err := wire.DecodePacket(data)
	if err != nil {
		return nil, "", err
	}
	sub, err := wire.DecodeSubscribe(pkt)
	if err != nil {
		return nil, pkt.Type, err
	}
	return sub, pkt.Type, nil
}

func (p *Publisher) logControl(c *transport.Connection, kind string, sub *wire.Subscribe) {
	p.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.ConnID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryControl,
		LocalRole:    log.RolePublisher,
		RemoteAddr:   c.RemoteAddr(),
		Topic:        sub.Topic,
		Control: &log.ControlEvent{
			Kind:    kind,
			MsgType: sub.MsgType,
			Host:    sub.Host,
			Port:    sub.Port,
		},
	})
}

func (p *Publisher) logError(c *transport.Connection, err error) {
	p.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.ConnID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryError,
		LocalRole:    log.RolePublisher,
		RemoteAddr:   c.RemoteAddr(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: "announcement",
		},
	})
}
