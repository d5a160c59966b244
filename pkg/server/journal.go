package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/mustangchat/pkg/datastore"
	"github.com/NicolasHaas/mustangchat/pkg/logging"
)

// journalQueueSize bounds the batches waiting for the journal writer.
const journalQueueSize = 256

// ErrJournalBusy is returned by JournalWriter.Record when its queue is full.
var ErrJournalBusy = errors.New("server: journal queue full")

// JournalWriter moves journal writes off the dispatch workers. Record only
// enqueues; a single goroutine writes batches to the underlying store in
// order. A full queue drops the batch instead of stalling the caller.
type JournalWriter struct {
	store   datastore.Recorder
	queue   chan []datastore.Event
	timeout time.Duration
	metrics *Metrics
	log     *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex // guards closed against concurrent Record
	closed    bool
}

// NewJournalWriter starts a writer in front of store. Each batch gets timeout
// to be written. Metrics may be nil.
func NewJournalWriter(store datastore.Recorder, queueSize int, timeout time.Duration, metrics *Metrics) *JournalWriter {
	if queueSize < 1 {
		queueSize = 1
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	w := &JournalWriter{
		store:   store,
		queue:   make(chan []datastore.Event, queueSize),
		timeout: timeout,
		metrics: metrics,
		log:     logging.For("journal"),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Record enqueues events. ctx is ignored; the write happens later under the
// writer's own timeout.
func (w *JournalWriter) Record(_ context.Context, events ...datastore.Event) error {
	if len(events) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrJournalBusy
	}
	select {
	case w.queue <- events:
		return nil
	default:
		w.metrics.JournalDropped.Add(int64(len(events)))
		return ErrJournalBusy
	}
}

func (w *JournalWriter) run() {
	defer close(w.done)
	for events := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := w.store.Record(ctx, events...); err != nil {
			w.metrics.JournalErrors.Add(1)
			w.log.Error("journal write failed", "events", len(events), "err", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are written.
// Safe to call more than once.
func (w *JournalWriter) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	<-w.done
}
