package core

import (
	"errors"
	"testing"

	"github.com/lisuiheng/fastplayer/audio"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty backend means pcm", func(c *Config) { c.Audio.Backend = "" }, nil},
		{"unknown backend", func(c *Config) { c.Audio.Backend = "vlc" }, ErrUnknownBackend},
		{"zero frame duration", func(c *Config) { c.Audio.FrameDuration = 0 }, ErrInvalidConfig},
		{"opus channels", func(c *Config) { c.Audio.OpusChannels = 6 }, ErrInvalidConfig},
		{"negative source limit", func(c *Config) { c.Audio.MaxSourceBytes = -1 }, ErrInvalidConfig},
		{"missing record dir", func(c *Config) { c.Record.Dir = "" }, ErrInvalidConfig},
		{"zero sample rate", func(c *Config) { c.Record.SampleRate = 0 }, ErrInvalidConfig},
		{"negative max duration", func(c *Config) { c.Record.MaxDuration = -1 }, ErrInvalidConfig},
		{"missing listen", func(c *Config) { c.Control.Listen = "" }, ErrInvalidConfig},
		{"relative path", func(c *Config) { c.Control.Path = "control" }, ErrInvalidConfig},
		{"all interfaces without token", func(c *Config) { c.Control.Listen = ":8765" }, ErrInvalidConfig},
		{"public address without token", func(c *Config) { c.Control.Listen = "0.0.0.0:8765" }, ErrInvalidConfig},
		{"public address with token", func(c *Config) {
			c.Control.Listen = "0.0.0.0:8765"
			c.Control.AccessToken = "secret"
		}, nil},
		{"localhost without token", func(c *Config) { c.Control.Listen = "localhost:8765" }, nil},
		{"ipv6 loopback without token", func(c *Config) { c.Control.Listen = "[::1]:8765" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMPVBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.Backend = audio.BackendMPV
	err := cfg.Validate()
	if audio.MPVAvailable && err != nil {
		t.Fatalf("mpv build rejected mpv backend: %v", err)
	}
	if !audio.MPVAvailable && !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
