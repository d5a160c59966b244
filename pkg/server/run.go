package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		slog.Info("shutting down...")
	case <-s.ctx.Done():
	}
	s.Shutdown()
	return nil
}

// Shutdown stops the receive loop, drains queued datagrams, stops the
// sweeper, flushes queued journal events and closes the journal. Safe to
// call more than once.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.transport != nil {
			s.transport.Interrupt()
			<-s.serveDone
		}
		// Drain before closing the socket so queued replies still go out.
		if s.pool != nil {
			s.pool.Close()
		}
		if s.transport != nil {
			_ = s.transport.Close()
		}
		// Flush queued journal events; later Records are refused.
		if s.journalW != nil {
			s.journalW.Close()
		}
		if s.journal != nil {
			if err := s.journal.Close(); err != nil {
				slog.Error("close journal", "err", err)
			}
		}
	})
}
