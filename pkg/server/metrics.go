package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Datagram counters
	DatagramsIn      atomic.Int64 // datagrams received
	DatagramsOut     atomic.Int64 // datagrams sent (replies and broadcasts)
	BytesIn          atomic.Int64
	BytesOut         atomic.Int64
	DecodeErrors     atomic.Int64 // malformed datagrams
	SendErrors       atomic.Int64 // failed sends (logged, never retried)
	HandlerPanics    atomic.Int64 // recovered per-datagram panics
	ProtocolRejected atomic.Int64 // messages refused: not logged in / not a member
	JournalDropped   atomic.Int64 // events dropped because the journal queue was full
	JournalErrors    atomic.Int64 // failed journal batch writes

	// Session counters
	Registrations   atomic.Int64
	Deregistrations atomic.Int64
	Evictions       atomic.Int64 // sessions removed by the sweeper

	// Chat counters
	ChatMessages atomic.Int64 // Say messages relayed
	ChatDelivers atomic.Int64 // individual broadcast deliveries
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	DatagramsIn      int64 `json:"datagrams_in"`
	DatagramsOut     int64 `json:"datagrams_out"`
	BytesIn          int64 `json:"bytes_in"`
	BytesOut         int64 `json:"bytes_out"`
	DecodeErrors     int64 `json:"decode_errors"`
	SendErrors       int64 `json:"send_errors"`
	HandlerPanics    int64 `json:"handler_panics"`
	ProtocolRejected int64 `json:"protocol_rejected"`
	JournalDropped   int64 `json:"journal_dropped"`
	JournalErrors    int64 `json:"journal_errors"`

	Registrations   int64 `json:"registrations"`
	Deregistrations int64 `json:"deregistrations"`
	Evictions       int64 `json:"evictions"`

	ChatMessages int64 `json:"chat_messages"`
	ChatDelivers int64 `json:"chat_delivers"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:           uptime.Truncate(time.Second).String(),
		UptimeSeconds:    int64(uptime.Seconds()),
		DatagramsIn:      m.DatagramsIn.Load(),
		DatagramsOut:     m.DatagramsOut.Load(),
		BytesIn:          m.BytesIn.Load(),
		BytesOut:         m.BytesOut.Load(),
		DecodeErrors:     m.DecodeErrors.Load(),
		SendErrors:       m.SendErrors.Load(),
		HandlerPanics:    m.HandlerPanics.Load(),
		ProtocolRejected: m.ProtocolRejected.Load(),
		JournalDropped:   m.JournalDropped.Load(),
		JournalErrors:    m.JournalErrors.Load(),
		Registrations:    m.Registrations.Load(),
		Deregistrations:  m.Deregistrations.Load(),
		Evictions:        m.Evictions.Load(),
		ChatMessages:     m.ChatMessages.Load(),
		ChatDelivers:     m.ChatDelivers.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a metrics summary to the logger.
func (m *Metrics) LogSummary(hub *Hub) {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"sessions", hub.Sessions().Count(),
		"channels", hub.Channels().Count(),
		"datagrams_in", s.DatagramsIn,
		"datagrams_out", s.DatagramsOut,
		"decode_errors", s.DecodeErrors,
		"chat_msgs", s.ChatMessages,
		"evictions", s.Evictions,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, hub *Hub, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary(hub)
			}
		}
	}()
}
