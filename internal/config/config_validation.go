// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "fmt"

// validate checks the merged [StructuredConfig] before syncd starts.
func (cfg *StructuredConfig) validate() error {
	if cfg.App.TokenSignKey == "" {
		return fmt.Errorf("%w: token sign key is required", ErrInvalidAppConfigs)
	}

	switch cfg.ChangeFeed.Driver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.ChangeFeed.DSN == "" {
			return fmt.Errorf("%w: postgres driver needs a DSN", ErrInvalidChangeFeedConfigs)
		}
		if cfg.ChangeFeed.NotifyChannel == "" {
			return fmt.Errorf("%w: empty notify channel", ErrInvalidChangeFeedConfigs)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidChangeFeedConfigs, cfg.ChangeFeed.Driver)
	}
	if cfg.ChangeFeed.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch timeout must be positive", ErrInvalidChangeFeedConfigs)
	}

	if cfg.Broadcast.Channel == "" {
		return fmt.Errorf("%w: empty channel", ErrInvalidBroadcastConfigs)
	}

	if cfg.Server.HTTPAddress == "" || cfg.Server.RequestTimeout <= 0 {
		return ErrInvalidServerConfigs
	}

	if cfg.Workers.StatusInterval < 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}

// validateClient checks the settings syncctl needs.
func (cfg *StructuredConfig) validateClient() error {
	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	return nil
}
