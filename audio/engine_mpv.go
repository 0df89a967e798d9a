//go:build libmpv

package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mpv "github.com/gen2brain/go-mpv"
	"github.com/lisuiheng/fastplayer/playback"
)

// MPVAvailable 当前构建是否包含 libmpv 后端
const MPVAvailable = true

const mpvPauseProperty = "pause"

type mpvEngine struct {
	mu        sync.Mutex
	client    *mpv.Mpv
	state     playback.EngineState
	listener  playback.EngineListener
	started   bool
	sessionID int

	logger      *slog.Logger
	closeOnce   sync.Once
	closed      chan struct{}
	eventLoopWG sync.WaitGroup
}

func newMPVEngine(logger *slog.Logger) (playback.Engine, error) {
	client := mpv.New()
	if client == nil {
		return nil, errors.New("create libmpv instance")
	}

	setOptionString(client, "terminal", "no")
	setOptionString(client, "video", "no")
	setOptionString(client, "audio-display", "no")
	setOptionString(client, "keep-open", "no")

	if err := client.Initialize(); err != nil {
		client.TerminateDestroy()
		return nil, fmt.Errorf("initialize libmpv: %w", err)
	}

	engine := &mpvEngine{
		client:    client,
		state:     playback.EngineIdle,
		sessionID: nextSessionID(),
		logger:    logger,
		closed:    make(chan struct{}),
	}

	_ = client.RequestEvent(mpv.EventFileLoaded, true)
	_ = client.RequestEvent(mpv.EventEnd, true)

	engine.eventLoopWG.Add(1)
	go engine.eventLoop()

	return engine, nil
}

func (e *mpvEngine) Prepare(source string, l playback.EngineListener) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetPropertyString(mpvPauseProperty, "yes"); err != nil {
		return fmt.Errorf("set pause before load: %w", err)
	}
	if err := e.client.Command([]string{"loadfile", source, "replace"}); err != nil {
		return fmt.Errorf("load file %q: %w", source, err)
	}

	e.listener = l
	e.state = playback.EngineBuffering
	e.started = false
	return nil
}

func (e *mpvEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listener == nil {
		return ErrNotPrepared
	}
	if err := e.client.SetPropertyString(mpvPauseProperty, "no"); err != nil {
		return fmt.Errorf("resume playback: %w", err)
	}
	e.started = true
	return nil
}

func (e *mpvEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listener = nil
	e.state = playback.EngineIdle
	e.started = false
	if err := e.client.Command([]string{"stop"}); err != nil {
		return fmt.Errorf("stop playback: %w", err)
	}
	return nil
}

func (e *mpvEngine) State() playback.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *mpvEngine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == playback.EngineReady && e.started
}

func (e *mpvEngine) SessionID() int {
	return e.sessionID
}

func (e *mpvEngine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		client := e.client
		e.mu.Unlock()

		if client != nil {
			client.Wakeup()
			client.TerminateDestroy()
		}

		e.eventLoopWG.Wait()
		close(e.closed)
	})

	<-e.closed
	return nil
}

func (e *mpvEngine) eventLoop() {
	defer e.eventLoopWG.Done()

	for {
		event := e.client.WaitEvent(0.5)
		if event == nil {
			continue
		}

		switch event.EventID {
		case mpv.EventShutdown:
			return
		case mpv.EventFileLoaded:
			e.report(playback.EngineReady, nil)
		case mpv.EventEnd:
			end := event.EndFile()
			switch end.Reason {
			case mpv.EndFileEOF:
				e.report(playback.EngineEnded, nil)
			case mpv.EndFileError:
				e.report(playback.EngineIdle, fmt.Errorf("end of file: %v", end.Reason))
			}
		}
	}
}

// report 只把事件交给当前加载的 listener。替换文件时旧文件的 EOF 可能晚到，
// 在新文件 ready 之前一律忽略。
func (e *mpvEngine) report(state playback.EngineState, err error) {
	e.mu.Lock()
	listener := e.listener
	if listener == nil {
		e.mu.Unlock()
		return
	}
	if state == playback.EngineEnded && e.state == playback.EngineBuffering {
		e.mu.Unlock()
		return
	}
	e.state = state
	if err != nil || state == playback.EngineEnded {
		e.listener = nil
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("libmpv playback failed", "error", err)
		listener.OnError(ErrCodeSource, err.Error())
		return
	}
	listener.OnStateChanged(state)
}

func setOptionString(client *mpv.Mpv, name string, value string) {
	_ = client.SetOptionString(name, value)
}
