package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

var ErrPlayerClosed = errors.New("audio player closed")

// PCMPlayer PortAudio实现的PCM播放器
type PCMPlayer struct {
	sampleRate int
	channels   int
	buffer     chan []int16
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
	stream     *portaudio.Stream

	// 仅在音频回调中访问
	remaining []int16
	pos       int

	queued atomic.Int64
}

// NewPCMPlayer 创建新的PortAudio PCM播放器
func NewPCMPlayer(sampleRate, frameDuration, channels int, logger *slog.Logger) (*PCMPlayer, error) {
	// 初始化PortAudio
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	player := &PCMPlayer{
		sampleRate: sampleRate,
		channels:   channels,
		buffer:     make(chan []int16, 100),
		done:       make(chan struct{}),
		logger:     logger,
	}

	frameSize := sampleRate * frameDuration / 1000
	stream, err := portaudio.OpenDefaultStream(
		0,                    // 输入通道数(0表示不录音)
		channels,             // 输出通道数
		float64(sampleRate),  // 采样率
		frameSize,            // 每次回调的帧数
		player.audioCallback, // 回调函数
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	player.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	return player, nil
}

// audioCallback 以非交错格式填充输出缓冲区，数据不足时补静音
func (p *PCMPlayer) audioCallback(out [][]float32) {
	channels := len(out)
	if channels == 0 {
		return
	}

	for i := 0; i < len(out[0]); i++ {
		for p.pos+channels > len(p.remaining) {
			// 不足一帧的残留样本直接丢弃
			p.queued.Add(-int64(len(p.remaining) - p.pos))
			p.pos = len(p.remaining)

			select {
			case data := <-p.buffer:
				p.remaining = data
				p.pos = 0
			default:
				p.remaining = nil
				p.pos = 0
				for c := range out {
					for j := i; j < len(out[c]); j++ {
						out[c][j] = 0
					}
				}
				return
			}
		}

		for c := 0; c < channels; c++ {
			out[c][i] = float32(p.remaining[p.pos+c]) / 32768.0
		}
		p.pos += channels
		p.queued.Add(-int64(channels))
	}
}

// Write 将交错PCM数据送入播放队列，队列满时阻塞
func (p *PCMPlayer) Write(ctx context.Context, data []int16) error {
	p.queued.Add(int64(len(data)))
	select {
	case p.buffer <- data:
		return nil
	case <-ctx.Done():
		p.queued.Add(-int64(len(data)))
		return ctx.Err()
	case <-p.done:
		p.queued.Add(-int64(len(data)))
		return ErrPlayerClosed
	}
}

// Pending 返回尚未播放的样本数
func (p *PCMPlayer) Pending() int {
	return int(p.queued.Load())
}

func (p *PCMPlayer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)

		if p.stream != nil {
			if err := p.stream.Stop(); err != nil {
				p.logger.Error("failed to stop audio stream", "error", err)
			}
			if err := p.stream.Close(); err != nil {
				p.logger.Error("failed to close audio stream", "error", err)
			}
		}

		// 终止PortAudio
		portaudio.Terminate()
	})
	return nil
}
