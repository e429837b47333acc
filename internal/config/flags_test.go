package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNetAddress_String tests the String method of NetAddress
func TestNetAddress_String(t *testing.T) {
	tests := []struct {
		name     string
		addr     NetAddress
		expected string
	}{
		{
			name:     "empty address",
			addr:     NetAddress{},
			expected: "",
		},
		{
			name:     "localhost with port",
			addr:     NetAddress{Host: "localhost", Port: 8080},
			expected: "localhost:8080",
		},
		{
			name:     "IP address with port",
			addr:     NetAddress{Host: "127.0.0.1", Port: 9090},
			expected: "127.0.0.1:9090",
		},
		{
			name:     "only host no port",
			addr:     NetAddress{Host: "localhost", Port: 0},
			expected: "localhost:0",
		},
		{
			name:     "only port no host",
			addr:     NetAddress{Host: "", Port: 8080},
			expected: ":8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.addr.String()
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestNetAddress_Set tests the Set method of NetAddress
func TestNetAddress_Set(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectError  bool
		errorMsg     string
		expectedAddr NetAddress
	}{
		{
			name:         "valid localhost",
			input:        "localhost:8080",
			expectError:  false,
			expectedAddr: NetAddress{Host: "localhost", Port: 8080},
		},
		{
			name:         "valid IPv4",
			input:        "127.0.0.1:9090",
			expectError:  false,
			expectedAddr: NetAddress{Host: "127.0.0.1", Port: 9090},
		},
		{
			name:        "missing colon",
			input:       "localhost8080",
			expectError: true,
			errorMsg:    "need address in a form `host:port`",
		},
		{
			name:        "multiple colons without brackets",
			input:       "host:port:extra",
			expectError: true,
			errorMsg:    "need address in a form `host:port`",
		},
		{
			name:        "non-numeric port",
			input:       "localhost:abc",
			expectError: true,
			errorMsg:    "invalid syntax",
		},
		{
			name:        "negative port",
			input:       "localhost:-1",
			expectError: true,
			errorMsg:    "port number is a positive integer",
		},
		{
			name:        "zero port",
			input:       "localhost:0",
			expectError: true,
			errorMsg:    "port number is a positive integer",
		},
		{
			name:        "invalid IP address",
			input:       "invalid.host:8080",
			expectError: true,
			errorMsg:    "incorrect IP-address provided",
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
			errorMsg:    "need address in a form `host:port`",
		},
		{
			name:        "only colon",
			input:       ":",
			expectError: true,
			errorMsg:    "invalid syntax",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := &NetAddress{}
			err := addr.Set(tt.input)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedAddr.Host, addr.Host)
				assert.Equal(t, tt.expectedAddr.Port, addr.Port)
			}
		})
	}
}

// TestParseFlags tests the ParseFlags function

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *StructuredConfig)
	}{
		{
			name: "no flags",
			args: nil,
			check: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "", cfg.Server.HTTPAddress)
				assert.Empty(t, cfg.ChangeFeed.Driver)
				assert.Empty(t, cfg.Args)
			},
		},
		{
			name: "server settings",
			args: []string{"-a", "localhost:8080", "-request-timeout", "15s", "-relay"},
			check: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddress)
				assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
				assert.Equal(t, 15*time.Second, cfg.Adapter.RequestTimeout)
				assert.True(t, cfg.Server.RelayEnabled)
			},
		},
		{
			name: "dsn implies postgres",
			args: []string{"-d", "postgres://localhost/tabsync", "-notify-channel", "changes", "-fetch-timeout", "2s"},
			check: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, DriverPostgres, cfg.ChangeFeed.Driver)
				assert.Equal(t, "postgres://localhost/tabsync", cfg.ChangeFeed.DSN)
				assert.Equal(t, "changes", cfg.ChangeFeed.NotifyChannel)
				assert.Equal(t, 2*time.Second, cfg.ChangeFeed.FetchTimeout)
			},
		},
		{
			name: "explicit driver wins over dsn",
			args: []string{"-d", "postgres://localhost/tabsync", "-driver", "memory"},
			check: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, DriverMemory, cfg.ChangeFeed.Driver)
			},
		},
		{
			name: "identity and broadcast",
			args: []string{
				"-tab-id", "tab-1", "-token-sign-key", "k", "-token-issuer", "iss", "-token-duration", "1h",
				"-broadcast-channel", "chan", "-relay-url", "ws://localhost:8080/ws/relay",
			},
			check: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "tab-1", cfg.App.TabID)
				assert.Equal(t, "k", cfg.App.TokenSignKey)
				assert.Equal(t, "iss", cfg.App.TokenIssuer)
				assert.Equal(t, time.Hour, cfg.App.TokenDuration)
				assert.Equal(t, "chan", cfg.Broadcast.Channel)
				assert.Equal(t, "ws://localhost:8080/ws/relay", cfg.Broadcast.RelayURL)
			},
		},
		{
			name: "tables list",
			args: []string{"-tables", "tasks,,notifications ,"},
			check: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, []string{"tasks", "notifications"}, cfg.ChangeFeed.Tables)
			},
		},
		{
			name: "config alias and positional args",
			args: []string{"-config", "/etc/tabsync.json", "-token", "jwt", "login", "extra"},
			check: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "/etc/tabsync.json", cfg.JSONFilePath)
				assert.Equal(t, "jwt", cfg.Adapter.Token)
				assert.Equal(t, []string{"login", "extra"}, cfg.Args)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseFlags(tt.args)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestParseFlags_InvalidAddress(t *testing.T) {
	for _, args := range [][]string{
		{"-a", "invalid"},
		{"-a", "bad.host:80"},
		{"-request-timeout", "soon"},
	} {
		_, err := ParseFlags(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestNetAddress_SetAndString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"localhost:8080", "localhost:8080"},
		{"127.0.0.1:9090", "127.0.0.1:9090"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			addr := &NetAddress{}
			err := addr.Set(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr.String())
		})
	}
}
