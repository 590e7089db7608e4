package config

import (
	"time"

	"github.com/kbukum/pipekit/flow"
	"github.com/kbukum/pipekit/kafka"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/redis"
	"github.com/kbukum/pipekit/resilience"
	"github.com/kbukum/pipekit/validation"
	"github.com/kbukum/pipekit/version"
	"github.com/kbukum/pipekit/ws"
)

// TransferSettings tunes transfer-loop policy knobs.
type TransferSettings struct {
	// ForwardNil delivers nil handler results instead of skipping them.
	ForwardNil bool `yaml:"forward_nil" mapstructure:"forward_nil"`
	// RaiseForHooks escalates hook failures out of the loop.
	RaiseForHooks bool `yaml:"raise_for_hooks" mapstructure:"raise_for_hooks"`
}

// PutSettings shapes the delivery retry budget.
type PutSettings struct {
	AttemptTimeout string  `yaml:"attempt_timeout" mapstructure:"attempt_timeout" validate:"required"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts" validate:"min=1"`
	InitialBackoff string  `yaml:"initial_backoff" mapstructure:"initial_backoff" validate:"required"`
	MaxBackoff     string  `yaml:"max_backoff" mapstructure:"max_backoff" validate:"required"`
	BackoffFactor  float64 `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"min=1"`
	Jitter         float64 `yaml:"jitter" mapstructure:"jitter" validate:"min=0,max=1"`
}

// ApplyDefaults sets the framework's delivery defaults.
func (p *PutSettings) ApplyDefaults() {
	if p.AttemptTimeout == "" {
		p.AttemptTimeout = flow.DefaultPutAttemptTimeout.String()
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = flow.DefaultPutMaxAttempts
	}
	if p.InitialBackoff == "" {
		p.InitialBackoff = flow.DefaultPutAttemptTimeout.String()
	}
	if p.MaxBackoff == "" {
		p.MaxBackoff = flow.DefaultPutMaxBackoff.String()
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
}

// Config converts the section into the transfer loop's put bounds.
func (p PutSettings) Config() flow.PutConfig {
	return flow.PutConfig{
		AttemptTimeout: parseDuration(p.AttemptTimeout),
		Retry: resilience.RetryConfig{
			MaxAttempts:    p.MaxAttempts,
			InitialBackoff: parseDuration(p.InitialBackoff),
			MaxBackoff:     parseDuration(p.MaxBackoff),
			BackoffFactor:  p.BackoffFactor,
			Jitter:         p.Jitter,
		},
	}
}

// ReconnectSettings shapes the stream reconnect supervisor.
type ReconnectSettings struct {
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts" validate:"min=1"`
	InitialBackoff string  `yaml:"initial_backoff" mapstructure:"initial_backoff" validate:"required"`
	MaxBackoff     string  `yaml:"max_backoff" mapstructure:"max_backoff" validate:"required"`
	BackoffFactor  float64 `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"min=1"`
}

// ApplyDefaults sets the framework's reconnect defaults.
func (r *ReconnectSettings) ApplyDefaults() {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = flow.DefaultMaxReconnectAttempts
	}
	if r.InitialBackoff == "" {
		r.InitialBackoff = "5s"
	}
	if r.MaxBackoff == "" {
		r.MaxBackoff = "30s"
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2.0
	}
}

// Backoff converts the section into a retry curve for reconnect sleeps.
func (r ReconnectSettings) Backoff() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: parseDuration(r.InitialBackoff),
		MaxBackoff:     parseDuration(r.MaxBackoff),
		BackoffFactor:  r.BackoffFactor,
	}
}

// ObservabilitySettings configures the OTLP exporters.
type ObservabilitySettings struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	Interval   string  `yaml:"interval" mapstructure:"interval"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// ApplyDefaults sets development-friendly exporter defaults.
func (o *ObservabilitySettings) ApplyDefaults() {
	if o.Endpoint == "" {
		o.Endpoint = "localhost:4318"
	}
	if o.Interval == "" {
		o.Interval = "15s"
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 1.0
	}
}

// KafkaSettings wraps the kafka adapter config with an enable switch.
type KafkaSettings struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	kafka.Config `yaml:",inline" mapstructure:",squash"`
}

// RedisSettings wraps the redis adapter config with an enable switch.
type RedisSettings struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	redis.Config `yaml:",inline" mapstructure:",squash"`
}

// WSSettings wraps the websocket adapter config with an enable switch.
type WSSettings struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	ws.Config `yaml:",inline" mapstructure:",squash"`
}

// Settings is the full configuration surface of a pipekit application:
// the service basics plus one section per framework concern and adapter.
type Settings struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Transfer      TransferSettings      `yaml:"transfer" mapstructure:"transfer"`
	Put           PutSettings           `yaml:"put" mapstructure:"put"`
	Reconnect     ReconnectSettings     `yaml:"reconnect" mapstructure:"reconnect"`
	Observability ObservabilitySettings `yaml:"observability" mapstructure:"observability"`
	Kafka         KafkaSettings         `yaml:"kafka" mapstructure:"kafka"`
	Redis         RedisSettings         `yaml:"redis" mapstructure:"redis"`
	WS            WSSettings            `yaml:"ws" mapstructure:"ws"`
}

// ApplyDefaults fills every section's defaults.
func (s *Settings) ApplyDefaults() {
	s.ServiceConfig.ApplyDefaults()
	s.Put.ApplyDefaults()
	s.Reconnect.ApplyDefaults()
	s.Observability.ApplyDefaults()
	if s.Kafka.Enabled {
		s.Kafka.Config.ApplyDefaults()
	}
	if s.Redis.Enabled {
		s.Redis.Config.ApplyDefaults()
	}
	if s.WS.Enabled {
		s.WS.Config.ApplyDefaults()
	}
}

// Validate checks the whole settings tree: struct tags first, then the
// duration strings the tags cannot parse, then each enabled adapter.
func (s *Settings) Validate() error {
	if err := s.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(s); err != nil {
		return err
	}
	if err := validation.New().
		Duration("put.attempt_timeout", s.Put.AttemptTimeout).
		Duration("put.initial_backoff", s.Put.InitialBackoff).
		Duration("put.max_backoff", s.Put.MaxBackoff).
		Duration("reconnect.initial_backoff", s.Reconnect.InitialBackoff).
		Duration("reconnect.max_backoff", s.Reconnect.MaxBackoff).
		Duration("observability.interval", s.Observability.Interval).
		Err(); err != nil {
		return err
	}
	if s.Kafka.Enabled {
		if err := s.Kafka.Config.Validate(); err != nil {
			return err
		}
	}
	if s.Redis.Enabled {
		if err := s.Redis.Config.Validate(); err != nil {
			return err
		}
	}
	if s.WS.Enabled {
		if err := s.WS.Config.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a Settings tree for serviceName with the usual precedence
// (explicit files, then discovered files, then environment), applies
// defaults, and validates. Empty paths fall back to discovery.
func Load(serviceName, configFile, envFile string) (*Settings, error) {
	var opts []LoaderOption
	if configFile != "" {
		opts = append(opts, WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, WithEnvFile(envFile))
	}
	var s Settings
	if err := LoadConfig(serviceName, &s, opts...); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = serviceName
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// InitLogging applies the logging section to the global logger and seeds
// the named-logger registry with the toolkit's component names, so
// logger.Get("flow") and friends return loggers honoring the settings.
func (s *Settings) InitLogging() {
	s.Logging.ApplyDefaults()
	logger.Init(&s.Logging)
	logger.RegisterDefaults("pipe", "flow", "task", "fitting", "kafka", "redis", "ws")
	logger.Info("Logging initialized", logger.Fields(
		"service", s.Name,
		"version", version.GetShortVersion(),
		"level", s.Logging.Level,
		"format", s.Logging.Format,
	))
}

func parseDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
