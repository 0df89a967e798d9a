package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lisuiheng/fastplayer/audio"
	"github.com/lisuiheng/fastplayer/pkg/interfaces"
	"github.com/lisuiheng/fastplayer/playback"
	"github.com/lisuiheng/fastplayer/protocols/websocket"
)

const shutdownTimeout = 5 * time.Second

var _ websocket.Service = (*Client)(nil)

// Client 组合播放引擎、通知器、录音和控制通道
type Client struct {
	config    Config
	engine    playback.Engine
	notifier  *playback.Notifier
	recorder  audio.Recorder
	audioCtrl audio.Controller
	server    *websocket.ControlServer
	logger    *slog.Logger

	recMu    sync.Mutex
	active   *recording
	lastFile string

	closeOnce sync.Once
}

// recording 一次进行中的录音
type recording struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Option 用于替换默认组件
type Option func(*Client)

func WithEngine(engine playback.Engine) Option {
	return func(c *Client) { c.engine = engine }
}

func WithRecorder(r audio.Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient 创建一个新的播放服务
func NewClient(cfg Config, log *slog.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.engine == nil {
		engine, err := audio.NewEngine(audio.EngineConfig{
			Backend:        cfg.Audio.Backend,
			FrameDuration:  cfg.Audio.FrameDuration,
			OpusChannels:   cfg.Audio.OpusChannels,
			MaxSourceBytes: cfg.Audio.MaxSourceBytes,
		}, log.With("component", "engine"))
		if err != nil {
			return nil, fmt.Errorf("failed to create playback engine: %w", err)
		}
		c.engine = engine
	}

	if c.recorder == nil {
		recorder, err := audio.NewRecorder(audio.Config{
			SampleRate:    cfg.Record.SampleRate,
			Channels:      cfg.Record.Channels,
			FrameDuration: cfg.Audio.FrameDuration,
			MaxDuration:   cfg.Record.MaxDuration,
		}, log.With("component", "recorder"))
		if err != nil {
			return nil, fmt.Errorf("failed to create audio recorder: %w", err)
		}
		c.recorder = recorder
	}

	c.notifier = playback.New(c.engine, log.With("component", "notifier"))
	c.audioCtrl = audio.NewController(c.notifier.Stop)
	c.notifier.AddObserver(&playback.ObserverFuncs{
		Loading: func(m playback.MediaReference) {
			c.logger.Info("Playback loading", "id", m.ID, "source", m.Source)
		},
		Start: func(m playback.MediaReference) {
			c.logger.Info("Playback started", "id", m.ID)
		},
		Stop: func(m playback.MediaReference, isError bool) {
			c.logger.Info("Playback stopped", "id", m.ID, "is_error", isError)
		},
	})

	c.server = websocket.NewControlServer(websocket.ServerConfig{
		AccessToken:      cfg.Control.AccessToken,
		StopOnDisconnect: cfg.Control.StopOnDisconnect,
		AllowedOrigins:   cfg.Control.AllowedOrigins,
	}, c, log.With("component", "control"))

	return c, nil
}

// Play 播放 source，id 为空时自动生成
func (c *Client) Play(id, source string) playback.MediaReference {
	if id == "" {
		id = uuid.NewString()
	}
	media := playback.MediaReference{ID: id, Source: source}
	c.notifier.Play(media)
	return media
}

func (c *Client) Stop() {
	c.notifier.Stop()
}

// StartRecording 停止当前播放并开始录音
func (c *Client) StartRecording() error {
	c.recMu.Lock()
	defer c.recMu.Unlock()

	if !c.audioCtrl.StartRecording() {
		return ErrAlreadyRecording
	}

	name := fmt.Sprintf("record-%s.wav", time.Now().Format("20060102-150405.000"))
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recording{
		path:   filepath.Join(c.config.Record.Dir, name),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.active = rec

	go func() {
		err := c.recorder.Record(ctx, rec.path)
		c.finishRecording(rec, err)
	}()

	c.logger.Info("Recording started", "path", rec.path)
	return nil
}

// finishRecording 录音结束（手动停止或达到最大时长）后清理状态
func (c *Client) finishRecording(rec *recording, err error) {
	c.recMu.Lock()
	if c.active == rec {
		c.active = nil
		c.audioCtrl.StopRecording()
	}
	if err == nil {
		c.lastFile = rec.path
	} else {
		c.logger.Error("Recording failed", "path", rec.path, "error", err)
	}
	c.recMu.Unlock()

	rec.err = err
	rec.cancel()
	close(rec.done)
}

// StopRecording 结束录音并返回文件路径
func (c *Client) StopRecording() (string, error) {
	c.recMu.Lock()
	rec := c.active
	c.recMu.Unlock()
	if rec == nil {
		return "", ErrNotRecording
	}

	rec.cancel()
	<-rec.done
	if rec.err != nil {
		return "", fmt.Errorf("record: %w", rec.err)
	}
	c.logger.Info("Recording saved", "path", rec.path)
	return rec.path, nil
}

// PlayRecording 播放最近一次录音，正在录音时先结束录音
func (c *Client) PlayRecording() (playback.MediaReference, error) {
	if _, err := c.StopRecording(); err != nil && !errors.Is(err, ErrNotRecording) {
		return playback.MediaReference{}, err
	}

	c.recMu.Lock()
	path := c.lastFile
	c.recMu.Unlock()
	if path == "" {
		return playback.MediaReference{}, ErrNoRecording
	}
	return c.Play(filepath.Base(path), path), nil
}

// Status 返回当前状态快照
func (c *Client) Status() interfaces.Status {
	c.recMu.Lock()
	lastFile := c.lastFile
	c.recMu.Unlock()

	status := interfaces.Status{
		State:     string(c.notifier.Status()),
		Recording: c.audioCtrl.IsRecording(),
		LastFile:  lastFile,
		SessionID: c.notifier.SessionID(),
	}
	if m, ok := c.notifier.Current(); ok {
		status.Current = &interfaces.Media{ID: m.ID, Source: m.Source}
	}
	return status
}

func (c *Client) AddObserverScoped(ctx context.Context, o playback.Observer) func() bool {
	return c.notifier.AddObserverScoped(ctx, o)
}

func (c *Client) StopOnDone(ctx context.Context) func() bool {
	return c.notifier.StopOnDone(ctx)
}

// Notifier 供嵌入方直接注册观察者
func (c *Client) Notifier() *playback.Notifier {
	return c.notifier
}

// Handler 返回挂载了控制通道的 HTTP 处理器
func (c *Client) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(c.config.Control.Path, c.server)
	return mux
}

// Run 启动控制通道，直到 ctx 结束
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("Starting control server",
		"listen", c.config.Control.Listen,
		"path", c.config.Control.Path)
	defer c.logger.Info("Control server stopped")

	ln, err := net.Listen("tcp", c.config.Control.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.Control.Listen, err)
	}
	return c.serve(ctx, ln)
}

func (c *Client) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		c.logger.Info("Context cancelled, stopping control server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// 已升级的 websocket 连接不受 Shutdown 管理，单独关闭
	c.server.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown control server: %w", err)
	}
	return nil
}

// Close 停止录音和播放并释放资源
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.logger.Info("Closing client")

		if _, rerr := c.StopRecording(); rerr != nil && !errors.Is(rerr, ErrNotRecording) {
			c.logger.Error("Failed to stop recording", "error", rerr)
		}
		c.notifier.Stop()
		c.server.Close()
		c.notifier.Close()

		if closer, ok := c.engine.(io.Closer); ok {
			err = closer.Close()
		}
		c.logger.Info("Client closed successfully")
	})
	return err
}
