// Package config holds the settings of the peercall binaries. Values come
// from the environment, optionally seeded from a .env file; command-line
// flags are applied on top by each binary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/1ureka/peercall/internal/protocol"
)

// Environment keys.
const (
	EnvSignalURL     = "PEERCALL_SIGNAL_URL"
	EnvClientID      = "PEERCALL_CLIENT_ID"
	EnvDebug         = "PEERCALL_DEBUG"
	EnvStatsInterval = "PEERCALL_STATS_INTERVAL"
	EnvRelayAddr     = "PEERCALL_RELAY_ADDR"
	EnvICEServers    = "PEERCALL_ICE_SERVERS"
	EnvSendBuffer    = "PEERCALL_SEND_BUFFER"
)

const (
	DefaultSignalURL     = "ws://localhost:8081/ws/webrtc"
	DefaultStatsInterval = 5 * time.Second
	DefaultRelayAddr     = ":8081"
	DefaultSendBuffer    = 256
)

// ClientConfig configures cmd/peercall.
type ClientConfig struct {
	SignalURL     string
	ClientID      string // empty: generated on connect
	Debug         bool
	StatsInterval time.Duration // 0 disables the periodic summary
}

// RelayConfig configures cmd/relay.
type RelayConfig struct {
	Addr       string
	ICEServers []protocol.ICEServer // nil: relay defaults
	SendBuffer int
	Debug      bool
}

// LoadClient reads the client settings.
func LoadClient() (*ClientConfig, error) {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	debug, err := getBool(EnvDebug, false)
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(getEnv(EnvStatsInterval, DefaultStatsInterval.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvStatsInterval, err)
	}

	return &ClientConfig{
		SignalURL:     getEnv(EnvSignalURL, DefaultSignalURL),
		ClientID:      getEnv(EnvClientID, ""),
		Debug:         debug,
		StatsInterval: interval,
	}, nil
}

// LoadRelay reads the relay settings.
func LoadRelay() (*RelayConfig, error) {
	_ = godotenv.Load()

	debug, err := getBool(EnvDebug, false)
	if err != nil {
		return nil, err
	}

	buffer, err := strconv.Atoi(getEnv(EnvSendBuffer, strconv.Itoa(DefaultSendBuffer)))
	if err != nil || buffer <= 0 {
		return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvSendBuffer)
	}

	servers, err := ParseICEServers(getEnv(EnvICEServers, ""))
	if err != nil {
		return nil, err
	}

	return &RelayConfig{
		Addr:       getEnv(EnvRelayAddr, DefaultRelayAddr),
		ICEServers: servers,
		SendBuffer: buffer,
		Debug:      debug,
	}, nil
}

// ParseICEServers decodes a JSON array in the wire format of the registered
// message. An empty string yields nil.
func ParseICEServers(raw string) ([]protocol.ICEServer, error) {
	if raw == "" {
		return nil, nil
	}

	var servers []protocol.ICEServer
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvICEServers, err)
	}
	return servers, nil
}

// getEnv returns the variable, or fallback when it is not set.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
