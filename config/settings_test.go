package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kbukum/pipekit/logger"
)

func writeSettingsFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}
	return path
}

func TestSettingsApplyDefaults(t *testing.T) {
	var s Settings
	s.Name = "svc"
	s.ApplyDefaults()

	if s.Put.MaxAttempts != 3 {
		t.Errorf("put.max_attempts default = %d, want 3", s.Put.MaxAttempts)
	}
	if s.Reconnect.MaxAttempts != 3 {
		t.Errorf("reconnect.max_attempts default = %d, want 3", s.Reconnect.MaxAttempts)
	}
	if s.Observability.Endpoint != "localhost:4318" {
		t.Errorf("observability.endpoint default = %q", s.Observability.Endpoint)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	pc := s.Put.Config()
	if pc.AttemptTimeout != 100*time.Millisecond {
		t.Errorf("put attempt timeout = %v", pc.AttemptTimeout)
	}
	if pc.Retry.BackoffFactor != 2.0 {
		t.Errorf("put backoff factor = %v", pc.Retry.BackoffFactor)
	}
	bc := s.Reconnect.Backoff()
	if bc.InitialBackoff != 5*time.Second {
		t.Errorf("reconnect initial backoff = %v", bc.InitialBackoff)
	}
}

func TestSettingsValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"negative jitter", func(s *Settings) { s.Put.Jitter = -0.5 }},
		{"bad attempt timeout", func(s *Settings) { s.Put.AttemptTimeout = "soon" }},
		{"bad reconnect backoff", func(s *Settings) { s.Reconnect.InitialBackoff = "later" }},
		{"sample rate above one", func(s *Settings) { s.Observability.SampleRate = 2.0 }},
		{"enabled ws without url", func(s *Settings) { s.WS.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s Settings
			s.Name = "svc"
			s.ApplyDefaults()
			tc.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestLoadSettingsFromYAML(t *testing.T) {
	path := writeSettingsFile(t, `
environment: production
put:
  max_attempts: 5
  attempt_timeout: 250ms
transfer:
  raise_for_hooks: true
redis:
  enabled: true
  addr: redis.internal:6379
`)
	s, err := Load("pipetest", path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Name != "pipetest" {
		t.Errorf("name = %q, want service name fallback", s.Name)
	}
	if s.Environment != "production" {
		t.Errorf("environment = %q", s.Environment)
	}
	if s.Put.MaxAttempts != 5 {
		t.Errorf("put.max_attempts = %d, want 5", s.Put.MaxAttempts)
	}
	if got := s.Put.Config().AttemptTimeout; got != 250*time.Millisecond {
		t.Errorf("put attempt timeout = %v", got)
	}
	if !s.Transfer.RaiseForHooks {
		t.Error("transfer.raise_for_hooks not loaded")
	}
	if !s.Redis.Enabled || s.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis section = %+v", s.Redis)
	}
	if s.Kafka.Enabled {
		t.Error("kafka should stay disabled by default")
	}
}

func TestLoadSettingsRejectsInvalidFile(t *testing.T) {
	path := writeSettingsFile(t, `
put:
  attempt_timeout: whenever
`)
	if _, err := Load("pipetest", path, ""); err == nil {
		t.Fatal("Load validated a bad duration")
	}
}

func TestSettingsInitLogging(t *testing.T) {
	var s Settings
	s.Logging.Level = "warn"
	s.Logging.Format = "json"
	s.InitLogging()

	l := logger.Get("flow")
	if l == nil {
		t.Fatal("expected a registered flow logger")
	}
	if l.Enabled(zerolog.DebugLevel) {
		t.Error("debug should be disabled at warn level")
	}
	if !l.Enabled(zerolog.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}
}
