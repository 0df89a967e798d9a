package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lisuiheng/fastplayer/pkg/interfaces"
	"github.com/lisuiheng/fastplayer/playback"
	"github.com/lisuiheng/fastplayer/protocols/websocket"
)

type readyEngine struct {
	mu    sync.Mutex
	state playback.EngineState
	stops int
}

func (e *readyEngine) Prepare(source string, l playback.EngineListener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = playback.EngineReady
	l.OnStateChanged(playback.EngineReady)
	return nil
}

func (e *readyEngine) Start() error { return nil }

func (e *readyEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = playback.EngineIdle
	e.stops++
	return nil
}

func (e *readyEngine) State() playback.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == "" {
		return playback.EngineIdle
	}
	return e.state
}

func (e *readyEngine) IsPlaying() bool { return e.State() == playback.EngineReady }

func (e *readyEngine) SessionID() int { return 3 }

// fileRecorder 在录音结束时写出一个占位文件
type fileRecorder struct {
	err error
}

func (r *fileRecorder) Record(ctx context.Context, path string) error {
	<-ctx.Done()
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(path, []byte("RIFF"), 0644)
}

func newTestClient(t *testing.T, rec *fileRecorder) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Record.Dir = t.TempDir()

	c, err := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithEngine(&readyEngine{}), WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewClientRequiresLogger(t *testing.T) {
	if _, err := NewClient(DefaultConfig(), nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.Backend = "vlc"
	_, err := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), WithEngine(&readyEngine{}))
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestPlayGeneratesID(t *testing.T) {
	c := newTestClient(t, &fileRecorder{})

	media := c.Play("", "a.wav")
	if _, err := uuid.Parse(media.ID); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", media.ID, err)
	}

	waitFor(t, func() bool { return c.Status().State == string(playback.StatePlaying) })
	status := c.Status()
	if status.Current == nil || status.Current.ID != media.ID || status.SessionID != 3 {
		t.Fatalf("status = %+v", status)
	}

	c.Stop()
	if c.Status().Current != nil {
		t.Fatal("current should be cleared after stop")
	}
}

func TestRecordingLifecycle(t *testing.T) {
	c := newTestClient(t, &fileRecorder{})

	if _, err := c.StopRecording(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("err = %v, want ErrNotRecording", err)
	}
	if _, err := c.PlayRecording(); !errors.Is(err, ErrNoRecording) {
		t.Fatalf("err = %v, want ErrNoRecording", err)
	}

	c.Play("song", "song.mp3")
	waitFor(t, func() bool { return c.Status().State == string(playback.StatePlaying) })

	if err := c.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if c.Status().State != string(playback.StateIdle) {
		t.Fatal("recording should stop playback")
	}
	if err := c.StartRecording(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("err = %v, want ErrAlreadyRecording", err)
	}
	if !c.Status().Recording {
		t.Fatal("status should report recording")
	}

	path, err := c.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if filepath.Dir(path) != c.config.Record.Dir || filepath.Ext(path) != ".wav" {
		t.Fatalf("unexpected recording path %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("recording file missing: %v", err)
	}

	status := c.Status()
	if status.Recording || status.LastFile != path {
		t.Fatalf("status = %+v", status)
	}

	media, err := c.PlayRecording()
	if err != nil {
		t.Fatalf("PlayRecording: %v", err)
	}
	if media.Source != path {
		t.Fatalf("played %q, want %q", media.Source, path)
	}
}

func TestPlayRecordingStopsActiveRecording(t *testing.T) {
	c := newTestClient(t, &fileRecorder{})

	if err := c.StartRecording(); err != nil {
		t.Fatal(err)
	}
	media, err := c.PlayRecording()
	if err != nil {
		t.Fatalf("PlayRecording: %v", err)
	}
	if c.Status().Recording {
		t.Fatal("recording should have been stopped")
	}
	if media.Source != c.Status().LastFile {
		t.Fatalf("played %q, last file %q", media.Source, c.Status().LastFile)
	}
}

func TestRecordingFailure(t *testing.T) {
	c := newTestClient(t, &fileRecorder{err: errors.New("no input device")})

	if err := c.StartRecording(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StopRecording(); err == nil {
		t.Fatal("expected recorder error")
	}
	if c.Status().Recording {
		t.Fatal("failed recording should not stay active")
	}
	if _, err := c.PlayRecording(); !errors.Is(err, ErrNoRecording) {
		t.Fatalf("err = %v, want ErrNoRecording", err)
	}
}

func TestServeControlChannel(t *testing.T) {
	c := newTestClient(t, &fileRecorder{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- c.serve(ctx, ln) }()

	var cfg websocket.Config
	cfg.Server.URL = "ws://" + ln.Addr().String() + c.config.Control.Path
	client, err := websocket.NewWebSocketProtocol(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	select {
	case msg := <-client.Receive():
		var ev interfaces.Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != interfaces.EventStatus {
			t.Fatalf("first event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status event")
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return")
	}
}
