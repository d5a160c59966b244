package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/NicolasHaas/mustangchat/pkg/datastore"
	"github.com/NicolasHaas/mustangchat/pkg/logging"
	"github.com/NicolasHaas/mustangchat/pkg/model"
)

// Sweeper evicts sessions that have been silent for longer than the
// session timeout. Evicted clients get no goodbye; they are presumed gone.
type Sweeper struct {
	hub      *Hub
	interval time.Duration
	timeout  time.Duration
	metrics  *Metrics
	journal  datastore.Recorder
	log      *slog.Logger
}

// NewSweeper creates a sweeper. Metrics and journal may be nil.
func NewSweeper(hub *Hub, interval, timeout time.Duration, metrics *Metrics, journal datastore.Recorder) *Sweeper {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Sweeper{
		hub:      hub,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics,
		journal:  journal,
		log:      logging.For("sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(s.hub.Now())
		}
	}
}

// SweepOnce evicts every session whose last activity is older than
// now minus the timeout and returns the evicted sessions.
func (s *Sweeper) SweepOnce(now time.Time) []model.Session {
	evicted := s.hub.Evict(now.Add(-s.timeout))
	if len(evicted) == 0 {
		return nil
	}

	events := make([]datastore.Event, 0, len(evicted))
	for _, sess := range evicted {
		s.log.Info("evicted", "remote", sess.Endpoint, "user", sess.Username,
			"session", sess.ID, "idle", sess.Idle(now).Truncate(time.Second))
		events = append(events, sessionEvent(sess, datastore.EventEvict, now))
	}
	s.metrics.Evictions.Add(int64(len(evicted)))
	recordEvents(s.journal, s.log, events...)

	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		if err := s.hub.CheckConsistency(); err != nil {
			s.log.Debug("hub inconsistent after sweep", "err", err)
		}
	}
	return evicted
}
