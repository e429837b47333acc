// Package utils provides general-purpose helpers used across the
// application: JSON and server-sent event response writing, JWT generation
// and validation, bearer header parsing, and tab id generation.
package utils
