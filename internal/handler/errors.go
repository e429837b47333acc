// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package handler

import "errors"

var (
	// errNoHandlersAreCreated is returned by NewHandlers when no HTTP
	// address is configured, so nothing would serve the session.
	errNoHandlersAreCreated = errors.New("no handlers are created")

	// errNoSession is returned by NewHandlers without a session or an
	// authenticator to serve.
	errNoSession = errors.New("no sync session to serve")
)
