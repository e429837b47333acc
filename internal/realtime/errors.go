package realtime

import "errors"

// Construction and lifecycle errors. The event path itself never returns errors: failures
// there surface as connection status or are logged and dropped.
var (
	ErrNoChangeFeed      = errors.New("no change feed provider given")
	ErrNoBroadcastMedium = errors.New("no broadcast medium given")
	ErrNoIdentity        = errors.New("no identity provider given")
	ErrEmptyTabID        = errors.New("empty tab id")
	ErrNoTables          = errors.New("no tables to watch")
	ErrUnknownTable      = errors.New("table is not recognised")
	ErrDuplicateTable    = errors.New("table listed twice")
	ErrStaleGeneration   = errors.New("generation is not newer than the current one")
)
