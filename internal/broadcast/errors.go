package broadcast

import "errors"

var (
	// ErrMediumClosed is returned by Send after Close.
	ErrMediumClosed = errors.New("broadcast medium is closed")
	// ErrNotConnected is returned by the websocket medium while it has no
	// live relay connection.
	ErrNotConnected = errors.New("broadcast relay is not connected")
	// ErrOutboxFull is returned by the websocket medium when its send queue
	// is full.
	ErrOutboxFull = errors.New("broadcast outbox is full")
	// ErrEmptyChannel is returned when a channel name is missing.
	ErrEmptyChannel = errors.New("no channel name given")
)
