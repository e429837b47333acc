package workers

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/tabsync/internal/config"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/models"
)

type Workers struct {
	workers []Worker
}

// NewWorkers builds the workers enabled by cfg. A zero status interval
// disables the status reporter.
func NewWorkers(source StatusSource, cfg config.Workers, logger *logger.Logger) *Workers {
	w := &Workers{}
	if cfg.StatusInterval > 0 {
		w.workers = append(w.workers, NewStatusReporter(source, cfg.StatusInterval, logger))
	}
	return w
}

// Run starts every worker in its own goroutine and blocks until all of them
// have returned.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, worker := range w.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}
	wg.Wait()
}

// Len returns the number of configured workers.
func (w *Workers) Len() int {
	return len(w.workers)
}

// StatusReporter periodically logs the status of a sync session.
type StatusReporter struct {
	source   StatusSource
	interval time.Duration

	logger *logger.Logger
}

func NewStatusReporter(source StatusSource, interval time.Duration, log *logger.Logger) *StatusReporter {
	return &StatusReporter{
		source:   source,
		interval: interval,
		logger:   log.Component("status_reporter"),
	}
}

func (r *StatusReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *StatusReporter) report() {
	status := r.source.Status()

	event := r.logger.Info()
	if status.ConnectionStatus == models.StatusError {
		event = r.logger.Warn()
	}

	event.
		Str("connection_status", string(status.ConnectionStatus)).
		Any("tables", status.Tables).
		Uint64("event_count", status.EventCount).
		Uint64("generation", status.Generation).
		Str("user_id", status.UserID).
		Msg("sync status")
}
