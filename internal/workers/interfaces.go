// Package workers runs the background jobs of the sync daemon.
//
// It defines the [Worker] interface and a [Workers] aggregate that runs all
// configured workers until their shared context is cancelled.
package workers

import (
	"context"

	"github.com/MKhiriev/tabsync/models"
)

// Worker is a background job. Run blocks until ctx is cancelled.
//
// Example implementation:
//
//	type MyWorker struct{}
//
//	func (w *MyWorker) Run(ctx context.Context) {
//	    <-ctx.Done()
//	}
type Worker interface {
	Run(ctx context.Context)
}

// StatusSource reports the status of a sync session.
type StatusSource interface {
	Status() models.SyncStatus
}
