// Package server runs the HTTP transport of the sync daemon.
//
// It owns the listener lifecycle: serving until the context is cancelled or
// a stop signal arrives, then shutting down gracefully within the configured
// timeout. Long-lived event streams are cancelled as part of the shutdown.
package server
