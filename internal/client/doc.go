// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the syncctl command runtime.
//
// It maps a subcommand and its arguments onto a [adapter.SyncAPI] call and
// prints the result as JSON, one value per line, so the output can be piped
// into other tools.
package client
