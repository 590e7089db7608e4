package ws

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/pipekit/validation"
)

// Config holds websocket stream configuration.
type Config struct {
	// URL is the ws:// or wss:// endpoint to dial.
	URL string `mapstructure:"url"`

	// Headers are sent with the handshake request.
	Headers map[string]string `mapstructure:"headers"`

	// Subscribe frames are written as text messages right after the
	// handshake, in order.
	Subscribe []string `mapstructure:"subscribe"`

	// HandshakeTimeout bounds the dial.
	HandshakeTimeout string `mapstructure:"handshake_timeout"`

	// PingInterval is the keepalive ping period. The connection is
	// considered dead when no pong (or other traffic) arrives within
	// PongWait of a ping.
	PingInterval string `mapstructure:"ping_interval"`
	PongWait     string `mapstructure:"pong_wait"`

	// WriteTimeout bounds each control or subscribe write.
	WriteTimeout string `mapstructure:"write_timeout"`

	// MaxMessageSize caps inbound frames; 0 means the gorilla default.
	MaxMessageSize int64 `mapstructure:"max_message_size"`

	// Buffer is the capacity of the internal receive channel.
	Buffer int `mapstructure:"buffer"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.HandshakeTimeout == "" {
		c.HandshakeTimeout = "10s"
	}
	if c.PingInterval == "" {
		c.PingInterval = "30s"
	}
	if c.PongWait == "" {
		c.PongWait = "75s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	v := validation.New().
		Required("ws.url", c.URL).
		Duration("ws.handshake_timeout", c.HandshakeTimeout).
		Duration("ws.ping_interval", c.PingInterval).
		Duration("ws.pong_wait", c.PongWait).
		Duration("ws.write_timeout", c.WriteTimeout)
	if c.URL != "" {
		v.Custom(strings.HasPrefix(c.URL, "ws://") || strings.HasPrefix(c.URL, "wss://"),
			"ws.url", fmt.Sprintf("must use the ws or wss scheme (got: %s)", c.URL))
	}
	return v.Err()
}

// ParseDuration parses a duration string, returning 0 on failure. Configs
// are validated up front, so a failure here means the zero value is wanted.
func ParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
