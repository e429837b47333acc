package config

import "time"

// defaults returns the values used for every field no source has set.
func defaults() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			TokenIssuer:   "tabsync",
			TokenDuration: 24 * time.Hour,
			Version:       "dev",
		},
		ChangeFeed: ChangeFeed{
			Driver:        DriverMemory,
			NotifyChannel: "realtime_changes",
			FetchTimeout:  5 * time.Second,
		},
		Broadcast: Broadcast{
			Channel: "realtime-sync",
		},
		Server: Server{
			HTTPAddress:     "localhost:8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Adapter: Adapter{
			HTTPAddress:    "localhost:8080",
			RequestTimeout: 10 * time.Second,
		},
		Workers: Workers{
			StatusInterval: time.Minute,
		},
	}
}
