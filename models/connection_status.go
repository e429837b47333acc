// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ConnectionStatus is the health of all change-feed subscriptions of one
// session, aggregated into a single value.
//
// Transitions:
//
//	disconnected --start--> connecting --all tables subscribed--> connected
//	connecting|connected --any table errors--> error
//	any --stop--> disconnected
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// TableStatus is the health of a single table subscription.
type TableStatus string

const (
	// TablePending means the subscription was requested but not acknowledged yet.
	TablePending TableStatus = "pending"
	// TableSubscribed means the provider acknowledged the subscription.
	TableSubscribed TableStatus = "subscribed"
	// TableError means the provider reported a channel error. The table stays
	// unhealthy until the next full start.
	TableError TableStatus = "error"
	// TableClosed means the provider closed a live subscription.
	TableClosed TableStatus = "closed"
)

// SyncStatus is a point-in-time read model of a sync session.
type SyncStatus struct {
	TabID            string                 `json:"tab_id"`
	ConnectionStatus ConnectionStatus       `json:"connection_status"`
	Tables           map[string]TableStatus `json:"tables"`
	EventCount       uint64                 `json:"event_count"`
	LastEvent        *ChangeEvent           `json:"last_event,omitempty"`
	Generation       uint64                 `json:"generation"`
	UserID           string                 `json:"user_id,omitempty"`
}
