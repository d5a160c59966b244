// Package server implements the MustangChat UDP relay.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NicolasHaas/mustangchat/pkg/datastore"
	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Journal and will Close() it on shutdown.
type Dependencies struct {
	Journal datastore.Store // nil = journaling disabled
}

// Server is the main MustangChat server.
type Server struct {
	cfg        Config
	hub        *Hub
	metrics    *Metrics
	registry   *prometheus.Registry
	codec      protocol.Codec
	journal    datastore.Store
	journalW   *JournalWriter
	transport  *UDPTransport
	pool       *Pool
	dispatcher *Dispatcher
	sweeper    *Sweeper
	ctx        context.Context
	cancel     context.CancelFunc
	serveDone  chan struct{}
	stopOnce   sync.Once
}

// New creates a new Server instance. The config is validated here; nothing
// is bound until Start.
func New(cfg Config, deps Dependencies) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := protocol.NewCodec(cfg.Wire)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	metrics := NewMetrics()
	return &Server{
		cfg:       cfg,
		hub:       hub,
		metrics:   metrics,
		registry:  NewMetricsRegistry(metrics, hub),
		codec:     codec,
		journal:   deps.Journal,
		ctx:       ctx,
		cancel:    cancel,
		serveDone: make(chan struct{}),
	}, nil
}

// Hub returns the shared session and channel state.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the Prometheus registry backing /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Sweeper returns the liveness sweeper. Nil before Start.
func (s *Server) Sweeper() *Sweeper {
	return s.sweeper
}

// Addr returns the bound UDP address. Zero before Start.
func (s *Server) Addr() netip.AddrPort {
	if s.transport == nil {
		return netip.AddrPort{}
	}
	return s.transport.LocalAddr()
}

// journalTimeout bounds one batch write by the journal writer.
const journalTimeout = 2 * time.Second

// recorder returns the journal writer as a Recorder, or an untyped nil so
// that the dispatcher's nil check holds.
func (s *Server) recorder() datastore.Recorder {
	if s.journalW == nil {
		return nil
	}
	return s.journalW
}

// Start binds the socket and launches the receive loop, the worker pool,
// the sweeper and the metrics endpoint. It does not block.
func (s *Server) Start() error {
	transport, err := ListenUDP(s.cfg.ListenAddr, s.cfg.ReadBuffer, s.metrics)
	if err != nil {
		return err
	}
	s.transport = transport

	if s.journal != nil {
		s.journalW = NewJournalWriter(s.journal, journalQueueSize, journalTimeout, s.metrics)
	}
	s.dispatcher = NewDispatcher(DispatcherDeps{
		Hub:     s.hub,
		Codec:   s.codec,
		Out:     transport,
		Metrics: s.metrics,
		Journal: s.recorder(),
	})
	s.pool = NewPool(s.cfg.Workers, s.cfg.QueueSize, s.dispatcher.Handle)
	s.pool.Start()

	s.sweeper = NewSweeper(s.hub, s.cfg.SweepInterval, s.cfg.SessionTimeout, s.metrics, s.recorder())
	go s.sweeper.Run(s.ctx)

	go func() {
		defer close(s.serveDone)
		if err := transport.Serve(s.ctx, s.pool.Submit); err != nil {
			slog.Error("receive loop stopped", "err", err)
		}
	}()

	if err := s.StartMetricsHTTP(); err != nil {
		s.Shutdown()
		return fmt.Errorf("server: metrics listen: %w", err)
	}
	s.metrics.StartPeriodicLog(s.cfg.MetricsLogInterval, s.hub, s.ctx.Done())

	slog.Info("chat relay listening",
		"addr", transport.LocalAddr().String(),
		"wire", s.codec.Name(),
		"workers", s.pool.Workers(),
		"session_timeout", s.cfg.SessionTimeout,
	)
	return nil
}
