// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package realtime implements the realtime synchronization layer.
//
// Backend change notifications flow in one direction:
//
//	change feed -> ConnectionManager -> Normalizer -> EventBus -> subscribers
//	                                                     |
//	                                                     +-> CrossTabReplicator -> other tabs' EventBus
//
// A [SyncSession] is the composition root: one per tab, built once at start
// and closed explicitly. It owns a single [ConnectionManager] whose
// subscriptions follow the identity lifecycle and a single
// [CrossTabReplicator] whose broadcast medium lives as long as the tab.
//
// Nothing on the event path returns an error to the caller. Failures are
// reflected in the connection status or logged and dropped.
package realtime
