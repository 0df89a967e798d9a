package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lisuiheng/fastplayer/playback"
)

var _ playback.Engine = (*PCMEngine)(nil)

// SinkFactory 为每次播放按解码格式打开输出设备
type SinkFactory func(sampleRate, channels int) (AudioPlayer, error)

// DefaultSinkFactory 使用 PortAudio 输出
func DefaultSinkFactory(frameDuration int, logger *slog.Logger) SinkFactory {
	return func(sampleRate, channels int) (AudioPlayer, error) {
		return NewPCMPlayer(sampleRate, frameDuration, channels, logger)
	}
}

const drainPollInterval = 10 * time.Millisecond

// PCMEngine 在进程内完成 打开 -> 解码 -> 输出
type PCMEngine struct {
	mu        sync.Mutex
	state     playback.EngineState
	job       *pcmJob
	sessionID int

	config   EngineConfig
	openSink SinkFactory
	logger   *slog.Logger
}

type pcmJob struct {
	source    string
	listener  playback.EngineListener
	cancel    context.CancelFunc
	start     chan struct{}
	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// NewPCMEngine 创建 PCM 播放引擎
func NewPCMEngine(cfg EngineConfig, openSink SinkFactory, logger *slog.Logger) *PCMEngine {
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 20
	}
	return &PCMEngine{
		state:     playback.EngineIdle,
		sessionID: nextSessionID(),
		config:    cfg,
		openSink:  openSink,
		logger:    logger,
	}
}

func (e *PCMEngine) Prepare(source string, l playback.EngineListener) error {
	if err := e.Stop(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &pcmJob{
		source:   source,
		listener: l,
		cancel:   cancel,
		start:    make(chan struct{}),
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	e.job = job
	e.state = playback.EngineBuffering
	e.mu.Unlock()

	go e.run(ctx, job)
	return nil
}

func (e *PCMEngine) Start() error {
	e.mu.Lock()
	job := e.job
	e.mu.Unlock()

	if job == nil {
		return ErrNotPrepared
	}
	job.startOnce.Do(func() {
		job.started.Store(true)
		close(job.start)
	})
	return nil
}

// Stop 取消当前播放并等待其退出
func (e *PCMEngine) Stop() error {
	e.mu.Lock()
	job := e.job
	e.job = nil
	e.state = playback.EngineIdle
	e.mu.Unlock()

	if job != nil {
		job.cancel()
		<-job.done
	}
	return nil
}

func (e *PCMEngine) State() playback.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *PCMEngine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == playback.EngineReady && e.job != nil && e.job.started.Load()
}

func (e *PCMEngine) SessionID() int {
	return e.sessionID
}

// Close 停止播放
func (e *PCMEngine) Close() error {
	return e.Stop()
}

func (e *PCMEngine) run(ctx context.Context, job *pcmJob) {
	defer close(job.done)

	job.listener.OnStateChanged(playback.EngineBuffering)

	src, err := OpenSource(ctx, job.source, SourceOptions{
		Client:   e.config.HTTPClient,
		MaxBytes: e.config.MaxSourceBytes,
	})
	if err != nil {
		e.fail(ctx, job, ErrCodeSource, err)
		return
	}
	defer src.Close()

	dec, err := NewDecoder(src, DecoderOptions{OpusChannels: e.config.OpusChannels})
	if err != nil {
		e.fail(ctx, job, ErrCodeDecode, err)
		return
	}
	defer dec.Close()

	if !e.transition(job, playback.EngineReady) {
		return
	}

	select {
	case <-job.start:
	case <-ctx.Done():
		return
	}

	format := dec.Format()
	sink, err := e.openSink(format.SampleRate, format.Channels)
	if err != nil {
		e.fail(ctx, job, ErrCodeOutput, err)
		return
	}
	defer sink.Close()

	e.logger.Debug("Playback started",
		"source", job.source,
		"sample_rate", format.SampleRate,
		"channels", format.Channels)

	frame := make([]int16, format.SampleRate*e.config.FrameDuration/1000*format.Channels)
	for {
		n, err := dec.Read(frame)
		if n > 0 {
			chunk := make([]int16, n)
			copy(chunk, frame[:n])
			if werr := sink.Write(ctx, chunk); werr != nil {
				e.fail(ctx, job, ErrCodeOutput, werr)
				return
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.fail(ctx, job, ErrCodeDecode, err)
			return
		}
	}

	// 等待缓冲区播放完毕
	for sink.Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(drainPollInterval):
		}
	}

	e.transition(job, playback.EngineEnded)
}

// transition 仅在 job 仍是当前任务时更新状态并上报
func (e *PCMEngine) transition(job *pcmJob, state playback.EngineState) bool {
	e.mu.Lock()
	if e.job != job {
		e.mu.Unlock()
		return false
	}
	e.state = state
	e.mu.Unlock()

	job.listener.OnStateChanged(state)
	return true
}

func (e *PCMEngine) fail(ctx context.Context, job *pcmJob, code int, err error) {
	if ctx.Err() != nil {
		return
	}

	e.mu.Lock()
	if e.job != job {
		e.mu.Unlock()
		return
	}
	e.job = nil
	e.state = playback.EngineIdle
	e.mu.Unlock()

	e.logger.Error("Playback engine failed", "source", job.source, "code", code, "error", err)
	job.listener.OnError(code, err.Error())
}
