// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package changefeed

//go:generate mockgen -source=interfaces.go -destination=../mock/changefeed_provider_mock.go -package=mock

import "github.com/MKhiriev/tabsync/models"

// Filter restricts a subscription to rows owned by one user.
type Filter struct {
	// OwnerID is matched against the owner column of the table.
	OwnerID string
}

// Handle is an opaque reference to one open subscription.
type Handle interface {
	// Table returns the table the subscription watches.
	Table() string
}

// ChangeHandler receives row changes of one subscription, in the order the
// provider observed them.
type ChangeHandler func(change models.RawChange)

// StatusHandler receives status updates of one subscription.
type StatusHandler func(state models.SubscriptionState, err error)

// Provider is a source of row-level change notifications.
//
// Subscribe returns immediately; the SUBSCRIBED acknowledgement and all row
// changes arrive later on provider goroutines. Handlers of one subscription
// are never invoked concurrently with each other.
type Provider interface {
	// Subscribe opens a subscription on table filtered by filter.
	Subscribe(table string, filter Filter, onChange ChangeHandler, onStatus StatusHandler) (Handle, error)

	// Unsubscribe closes the subscription. Closing an already closed or
	// unknown handle is a no-op.
	Unsubscribe(handle Handle)
}
