// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package identity

import "github.com/MKhiriev/tabsync/models"

// Listener is notified synchronously on every identity transition: login,
// logout and user switch.
type Listener func(identity models.Identity)

// Provider exposes the authenticated identity of the tab.
type Provider interface {
	// Current returns the identity at the moment of the call.
	Current() models.Identity

	// OnChange registers listener and returns a disposer that removes it.
	OnChange(listener Listener) (unsubscribe func())
}
