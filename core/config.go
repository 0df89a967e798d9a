package core

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lisuiheng/fastplayer/audio"
	"github.com/lisuiheng/fastplayer/logger"
)

// Config 是服务端配置结构（与 YAML 文件结构一致）
type Config struct {
	Audio   AudioConfig   `mapstructure:"audio"`
	Record  RecordConfig  `mapstructure:"record"`
	Control ControlConfig `mapstructure:"control"`
	Logging logger.Config `mapstructure:"logging"`
}

type AudioConfig struct {
	Backend        string `mapstructure:"backend"`        // pcm/mpv
	FrameDuration  int    `mapstructure:"frame_duration"` // 毫秒
	OpusChannels   int    `mapstructure:"opus_channels"`
	MaxSourceBytes int64  `mapstructure:"max_source_bytes"`
}

type RecordConfig struct {
	Dir         string        `mapstructure:"dir"`
	SampleRate  int           `mapstructure:"sample_rate"`
	Channels    int           `mapstructure:"channels"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type ControlConfig struct {
	Listen           string   `mapstructure:"listen"`
	Path             string   `mapstructure:"path"`
	AccessToken      string   `mapstructure:"access_token"`
	StopOnDisconnect bool     `mapstructure:"stop_on_disconnect"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
}

// DefaultConfig 返回默认配置，cmd 以此设置 viper 默认值
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			Backend:        audio.BackendPCM,
			FrameDuration:  20,
			OpusChannels:   2,
			MaxSourceBytes: audio.DefaultMaxSourceBytes,
		},
		Record: RecordConfig{
			Dir:         "recordings",
			SampleRate:  16000,
			Channels:    1,
			MaxDuration: 30 * time.Second,
		},
		Control: ControlConfig{
			Listen: "127.0.0.1:8765",
			Path:   "/control",
		},
		Logging: logger.Config{
			Level:   "info",
			Format:  "text",
			Outputs: []string{"stdout"},
		},
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case "", audio.BackendPCM:
	case audio.BackendMPV:
		if !audio.MPVAvailable {
			return fmt.Errorf("%w: backend mpv requires a build with -tags libmpv", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Audio.Backend)
	}

	if c.Audio.FrameDuration <= 0 {
		return fmt.Errorf("%w: audio.frame_duration must be positive", ErrInvalidConfig)
	}
	if c.Audio.OpusChannels != 1 && c.Audio.OpusChannels != 2 {
		return fmt.Errorf("%w: audio.opus_channels must be 1 or 2", ErrInvalidConfig)
	}
	if c.Audio.MaxSourceBytes < 0 {
		return fmt.Errorf("%w: audio.max_source_bytes must not be negative", ErrInvalidConfig)
	}

	if c.Record.Dir == "" {
		return fmt.Errorf("%w: record.dir is required", ErrInvalidConfig)
	}
	if c.Record.SampleRate <= 0 || c.Record.Channels <= 0 {
		return fmt.Errorf("%w: record.sample_rate and record.channels must be positive", ErrInvalidConfig)
	}
	if c.Record.MaxDuration < 0 {
		return fmt.Errorf("%w: record.max_duration must not be negative", ErrInvalidConfig)
	}

	if c.Control.Listen == "" {
		return fmt.Errorf("%w: control.listen is required", ErrInvalidConfig)
	}
	if c.Control.AccessToken == "" && !isLoopback(c.Control.Listen) {
		return fmt.Errorf("%w: control.access_token is required when listening on %s", ErrInvalidConfig, c.Control.Listen)
	}
	if !strings.HasPrefix(c.Control.Path, "/") {
		return fmt.Errorf("%w: control.path must start with /", ErrInvalidConfig)
	}
	return nil
}

// isLoopback 判断监听地址是否只对本机开放，空主机名表示所有网卡
func isLoopback(listen string) bool {
	host, _, err := net.SplitHostPort(listen)
	if err != nil || host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
