// Package config provides configuration loading, merging, and validation
// facilities for syncd and syncctl.
//
// Configuration is assembled from multiple sources in the following priority
// order (later sources override earlier non-zero fields):
//  1. JSON config file
//  2. Environment variables
//  3. Command-line flags
//
// Fields left unset by every source take the values of the built-in
// defaults. The entry points are [GetStructuredConfig] for syncd and
// [GetClientConfig] for syncctl.
package config
