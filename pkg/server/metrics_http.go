package server

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "mustangchat"

// NewMetricsRegistry returns a Prometheus registry exposing m and the live
// store sizes of hub, plus the standard Go and process collectors.
func NewMetricsRegistry(m *Metrics, hub *Hub) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, f)
	}

	reg.MustRegister(
		gauge("uptime_seconds", "Server uptime in seconds.",
			func() float64 { return time.Since(m.startTime).Seconds() }),
		gauge("sessions_active", "Currently registered sessions.",
			func() float64 { return float64(hub.Sessions().Count()) }),
		gauge("channels_active", "Channels with at least one member.",
			func() float64 { return float64(hub.Channels().Count()) }),

		counter("datagrams_in_total", "Datagrams received.", &m.DatagramsIn),
		counter("datagrams_out_total", "Datagrams sent.", &m.DatagramsOut),
		counter("bytes_in_total", "Bytes received.", &m.BytesIn),
		counter("bytes_out_total", "Bytes sent.", &m.BytesOut),
		counter("decode_errors_total", "Malformed datagrams.", &m.DecodeErrors),
		counter("send_errors_total", "Failed sends.", &m.SendErrors),
		counter("handler_panics_total", "Recovered handler panics.", &m.HandlerPanics),
		counter("protocol_rejected_total", "Messages refused for protocol state.", &m.ProtocolRejected),
		counter("journal_dropped_total", "Journal events dropped on a full queue.", &m.JournalDropped),
		counter("journal_errors_total", "Failed journal batch writes.", &m.JournalErrors),
		counter("registrations_total", "Sessions registered.", &m.Registrations),
		counter("deregistrations_total", "Sessions deregistered by the client.", &m.Deregistrations),
		counter("evictions_total", "Sessions evicted for inactivity.", &m.Evictions),
		counter("chat_messages_total", "Chat messages relayed.", &m.ChatMessages),
		counter("chat_deliveries_total", "Chat broadcast deliveries.", &m.ChatDelivers),
	)
	return reg
}

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// and /healthz. It runs in the background and shuts down when the server
// context is cancelled.
func (s *Server) StartMetricsHTTP() error {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return nil // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
	return nil
}
