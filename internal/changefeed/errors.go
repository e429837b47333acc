package changefeed

import "errors"

var (
	// ErrFeedClosed is returned by Subscribe once the provider has been closed.
	ErrFeedClosed = errors.New("change feed is closed")
	// ErrEmptyTable is returned by Subscribe when no table name is given.
	ErrEmptyTable = errors.New("no table given")
	// ErrListenerStopped is reported with CHANNEL_ERROR when the Postgres
	// listener exits.
	ErrListenerStopped = errors.New("notification listener stopped")
)
