package config

import "errors"

// Validation errors returned when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidAppConfigs indicates missing identity settings, such as the
	// token sign key.
	ErrInvalidAppConfigs = errors.New("invalid app configuration")
	// ErrInvalidChangeFeedConfigs indicates an unknown driver or a postgres
	// driver without a DSN.
	ErrInvalidChangeFeedConfigs = errors.New("invalid change feed configuration")
	// ErrInvalidBroadcastConfigs indicates an empty broadcast channel.
	ErrInvalidBroadcastConfigs = errors.New("invalid broadcast configuration")
	// ErrInvalidServerConfigs indicates a missing address or request timeout.
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
	// ErrInvalidAdapterConfigs indicates invalid syncctl adapter settings
	// (for example, missing HTTP address or request timeout).
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidWorkerConfigs indicates invalid background worker settings
	// (for example, a negative status interval).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
