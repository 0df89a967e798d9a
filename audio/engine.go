package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/lisuiheng/fastplayer/playback"
)

// 引擎错误码，随 OnError 上报
const (
	ErrCodeSource = 1001 // 资源无法打开
	ErrCodeDecode = 1002 // 解码失败
	ErrCodeOutput = 1003 // 输出设备失败
)

const (
	BackendPCM = "pcm"
	BackendMPV = "mpv"
)

var (
	ErrNotPrepared    = errors.New("engine not prepared")
	ErrUnknownBackend = errors.New("unknown audio backend")
)

var sessionCounter atomic.Int32

func nextSessionID() int {
	return int(sessionCounter.Add(1))
}

// EngineConfig 播放引擎配置
type EngineConfig struct {
	Backend        string
	FrameDuration  int // 毫秒
	OpusChannels   int
	MaxSourceBytes int64
	HTTPClient     *http.Client
}

// NewEngine 按配置创建播放引擎
func NewEngine(cfg EngineConfig, logger *slog.Logger) (playback.Engine, error) {
	switch cfg.Backend {
	case "", BackendPCM:
		return NewPCMEngine(cfg, DefaultSinkFactory(cfg.FrameDuration, logger), logger), nil
	case BackendMPV:
		return newMPVEngine(logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
