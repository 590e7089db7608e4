package kafka

import (
	"fmt"
	"time"

	"github.com/kbukum/pipekit/validation"
)

// Config holds Kafka connection and behavior configuration shared by
// sources and sinks. Topic is set per Source/Sink, not here.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`

	// GroupID is the consumer group identifier used by sources.
	GroupID string `mapstructure:"group_id"`

	// TLS
	EnableTLS     bool   `mapstructure:"enable_tls"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	TLSCAFile     string `mapstructure:"tls_ca_file"`
	TLSCertFile   string `mapstructure:"tls_cert_file"`
	TLSKeyFile    string `mapstructure:"tls_key_file"`

	// SASL
	EnableSASL    bool   `mapstructure:"enable_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`

	// Sink settings
	Compression  string `mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout string `mapstructure:"batch_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	RequiredAcks int    `mapstructure:"required_acks"`

	// Source settings
	MinBytes          int    `mapstructure:"min_bytes"`
	MaxBytes          int    `mapstructure:"max_bytes"`
	StartOffset       string `mapstructure:"start_offset"` // first, last
	SessionTimeout    string `mapstructure:"session_timeout"`
	HeartbeatInterval string `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  string `mapstructure:"rebalance_timeout"`

	// Connection settings
	DialTimeout string `mapstructure:"dial_timeout"`
	IdleTimeout string `mapstructure:"idle_timeout"`
	MetadataTTL string `mapstructure:"metadata_ttl"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == "" {
		c.BatchTimeout = "1s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1 // all replicas
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
	if c.StartOffset == "" {
		c.StartOffset = "first"
	}
	if c.SessionTimeout == "" {
		c.SessionTimeout = "30s"
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "3s"
	}
	if c.RebalanceTimeout == "" {
		c.RebalanceTimeout = "30s"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "10s"
	}
	if c.IdleTimeout == "" {
		c.IdleTimeout = "30s"
	}
	if c.MetadataTTL == "" {
		c.MetadataTTL = "6s"
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	v := validation.New().
		Custom(len(c.Brokers) > 0, "kafka.brokers", "is required").
		Duration("kafka.batch_timeout", c.BatchTimeout).
		Duration("kafka.write_timeout", c.WriteTimeout).
		Duration("kafka.session_timeout", c.SessionTimeout).
		Duration("kafka.heartbeat_interval", c.HeartbeatInterval).
		Duration("kafka.rebalance_timeout", c.RebalanceTimeout).
		Duration("kafka.dial_timeout", c.DialTimeout).
		Duration("kafka.idle_timeout", c.IdleTimeout).
		Duration("kafka.metadata_ttl", c.MetadataTTL).
		Custom(c.StartOffset == "first" || c.StartOffset == "last",
			"kafka.start_offset", fmt.Sprintf("must be first or last (got: %s)", c.StartOffset))
	if c.EnableSASL {
		v.OneOf("kafka.sasl_mechanism", c.SASLMechanism,
			[]string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}).
			Required("kafka.sasl_mechanism", c.SASLMechanism).
			Required("kafka.username", c.Username)
	}
	return v.Err()
}

// ParseDuration parses a duration string, returning 0 on failure. Configs
// are validated before use, so failures only happen on empty fields.
func ParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
