package config

import "time"

// Config holds relay and client configuration values. Both binaries read the
// same file; the relay ignores client-only fields and vice versa.
type Config struct {
	// Relay server.
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	// Client.
	RelayURL   string        `mapstructure:"relay_url" yaml:"relay_url"`
	Identity   string        `mapstructure:"identity" yaml:"identity"`
	TypingIdle time.Duration `mapstructure:"typing_idle" yaml:"typing_idle"`
	ICEServers []string      `mapstructure:"ice_servers" yaml:"ice_servers"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "meetwire.db",
		RelayURL:          "ws://localhost:8080/ws",
		TypingIdle:        time.Second,
		ICEServers:        []string{"stun:stun.l.google.com:19302"},
		LogLevel:          "info",
	}
}
