package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrRowNotFound is returned when no row with the requested id and
	// owner exists, for example because it was deleted after the change
	// notification was sent.
	ErrRowNotFound = errors.New("row was not found")

	// ErrUnknownTable is returned for tables outside the synchronised set.
	ErrUnknownTable = errors.New("table is not synchronised")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrScanningRow is returned when scanning or decoding a single result
	// row fails.
	ErrScanningRow = errors.New("failed to scan row")
)
