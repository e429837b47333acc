package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses the configuration flags in args (without the program
// name). Positional arguments left after the flags are returned in
// StructuredConfig.Args.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-server syncd address used by syncctl
//	-d database DSN (selects the postgres driver)
//	-driver change feed driver: memory or postgres
//	-notify-channel postgres notification channel
//	-tables comma separated list of watched tables
//	-fetch-timeout row fetch timeout (e.g., "5s")
//	-broadcast-channel cross-tab broadcast channel name
//	-relay-url websocket relay to join
//	-relay serve the websocket relay
//	-c/-config json file path with configs
//	-tab-id tab id
//	-token-sign-key token signing key
//	-token-issuer token issuer name
//	-token-duration token duration (e.g., "1h", "30m")
//	-token login token used by syncctl
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-status-interval status report interval (e.g., "1m")
func ParseFlags(args []string) (*StructuredConfig, error) {
	fs := flag.NewFlagSet("tabsync", flag.ContinueOnError)

	var serverAddress NetAddress
	var adapterAddress string
	var databaseDSN, driver, notifyChannel, tables string
	var fetchTimeout time.Duration
	var broadcastChannel, relayURL string
	var relayEnabled bool
	var jsonConfigPath string
	var tabID, tokenSignKey, tokenIssuer, token string
	var tokenDuration, requestTimeout, statusInterval time.Duration

	fs.Var(&serverAddress, "a", "Net address host:port")
	fs.StringVar(&adapterAddress, "server", "", "syncd address used by syncctl")
	fs.StringVar(&databaseDSN, "d", "", "Database DSN")
	fs.StringVar(&driver, "driver", "", "Change feed driver: memory or postgres")
	fs.StringVar(&notifyChannel, "notify-channel", "", "Postgres notification channel")
	fs.StringVar(&tables, "tables", "", "Comma separated list of watched tables")
	fs.DurationVar(&fetchTimeout, "fetch-timeout", 0, "Row fetch timeout (e.g., 5s)")
	fs.StringVar(&broadcastChannel, "broadcast-channel", "", "Cross-tab broadcast channel name")
	fs.StringVar(&relayURL, "relay-url", "", "Websocket relay URL")
	fs.BoolVar(&relayEnabled, "relay", false, "Serve the websocket relay")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&tabID, "tab-id", "", "Tab id")
	fs.StringVar(&tokenSignKey, "token-sign-key", "", "Token signing key")
	fs.StringVar(&tokenIssuer, "token-issuer", "", "Token issuer")
	fs.DurationVar(&tokenDuration, "token-duration", 0, "Token duration (e.g., 1h, 30m)")
	fs.StringVar(&token, "token", "", "Login token used by syncctl")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.DurationVar(&statusInterval, "status-interval", 0, "Status report interval (e.g., 1m)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("error parsing flags: %w", err)
	}

	// a DSN on the command line implies the postgres driver
	if databaseDSN != "" && driver == "" {
		driver = DriverPostgres
	}

	return &StructuredConfig{
		App: App{
			TabID:         tabID,
			TokenSignKey:  tokenSignKey,
			TokenIssuer:   tokenIssuer,
			TokenDuration: tokenDuration,
		},
		ChangeFeed: ChangeFeed{
			Driver:        driver,
			DSN:           databaseDSN,
			NotifyChannel: notifyChannel,
			Tables:        splitList(tables),
			FetchTimeout:  fetchTimeout,
		},
		Broadcast: Broadcast{
			Channel:  broadcastChannel,
			RelayURL: relayURL,
		},
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
			RelayEnabled:   relayEnabled,
		},
		Adapter: Adapter{
			HTTPAddress:    adapterAddress,
			RequestTimeout: requestTimeout,
			Token:          token,
		},
		Workers: Workers{
			StatusInterval: statusInterval,
		},
		JSONFilePath: jsonConfigPath,
		Args:         fs.Args(),
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is
// "localhost", and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}
	if port > 65535 {
		return errors.New("port number is out of range")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
