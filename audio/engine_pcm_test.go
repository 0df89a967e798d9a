package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lisuiheng/fastplayer/playback"
)

type memorySink struct {
	mu      sync.Mutex
	samples []int16
	block   bool
	closed  bool
}

func (s *memorySink) Write(ctx context.Context, data []int16) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, data...)
	return nil
}

func (s *memorySink) Pending() int { return 0 }

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type engineEvents struct {
	ch chan string
}

func newEngineEvents() *engineEvents {
	return &engineEvents{ch: make(chan string, 16)}
}

func (e *engineEvents) OnStateChanged(state playback.EngineState) {
	e.ch <- string(state)
}

func (e *engineEvents) OnError(code int, message string) {
	e.ch <- fmt.Sprintf("error:%d", code)
}

func (e *engineEvents) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-e.ch:
			if got != w {
				t.Fatalf("engine event = %s, want %s", got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", w)
		}
	}
}

func (e *engineEvents) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-e.ch:
		t.Fatalf("unexpected engine event %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestEngine(sink *memorySink) *PCMEngine {
	factory := func(sampleRate, channels int) (AudioPlayer, error) {
		return sink, nil
	}
	return NewPCMEngine(EngineConfig{FrameDuration: 20}, factory, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPCMEnginePlaysToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	want := rampSamples(8000)
	writeTestWAV(t, path, 8000, 1, want)

	sink := &memorySink{}
	engine := newTestEngine(sink)
	events := newEngineEvents()

	if err := engine.Prepare(path, events); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	events.expect(t, "buffering", "ready")
	if engine.IsPlaying() {
		t.Fatal("engine should not play before Start")
	}

	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	events.expect(t, "ended")

	if got := engine.State(); got != playback.EngineEnded {
		t.Fatalf("state = %s, want ended", got)
	}
	// Stop 等待播放协程退出
	if err := engine.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.samples) != len(want) {
		t.Fatalf("sink got %d samples, want %d", len(sink.samples), len(want))
	}
	if !sink.closed {
		t.Fatal("sink should be closed after playback")
	}
}

func TestPCMEngineReportsSourceError(t *testing.T) {
	engine := newTestEngine(&memorySink{})
	events := newEngineEvents()

	if err := engine.Prepare(filepath.Join(t.TempDir(), "missing.wav"), events); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	events.expect(t, "buffering", fmt.Sprintf("error:%d", ErrCodeSource))

	if got := engine.State(); got != playback.EngineIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestPCMEngineStopCancelsPlayback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeTestWAV(t, path, 8000, 1, rampSamples(8000))

	engine := newTestEngine(&memorySink{block: true})
	events := newEngineEvents()

	if err := engine.Prepare(path, events); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	events.expect(t, "buffering", "ready")

	if err := engine.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	events.expectNone(t)
	if got := engine.State(); got != playback.EngineIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestPCMEngineStartWithoutPrepare(t *testing.T) {
	engine := newTestEngine(&memorySink{})
	if err := engine.Start(); err != ErrNotPrepared {
		t.Fatalf("err = %v, want ErrNotPrepared", err)
	}
}

// 通过 Notifier 驱动真实引擎，覆盖完整的加载到结束流程
func TestNotifierWithPCMEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeTestWAV(t, path, 8000, 1, rampSamples(1600))

	n := playback.New(newTestEngine(&memorySink{}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer n.Close()

	stopped := make(chan bool, 1)
	var started bool
	n.AddObserver(&playback.ObserverFuncs{
		Start: func(playback.MediaReference) { started = true },
		Stop: func(_ playback.MediaReference, isError bool) {
			stopped <- isError
		},
	})

	n.Play(playback.MediaReference{ID: "a", Source: path})

	select {
	case isError := <-stopped:
		if isError {
			t.Fatal("playback ended with error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not finish")
	}
	if !started {
		t.Fatal("start was not reported")
	}
	if _, ok := n.Current(); ok {
		t.Fatal("current media should be cleared")
	}
}
