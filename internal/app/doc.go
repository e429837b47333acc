// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app assembles the sync daemon from its configuration.
//
// [NewDaemon] picks the change feed (in-memory or PostgreSQL LISTEN/NOTIFY),
// the broadcast medium (process-local hub or websocket relay) and the JWT
// identity, builds the sync session on top of them and wires the HTTP
// server and background workers. [Daemon.Run] serves until the context is
// cancelled; [Daemon.Close] releases everything in reverse order.
package app
