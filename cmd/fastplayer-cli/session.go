package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lisuiheng/fastplayer/pkg/interfaces"
	"github.com/lisuiheng/fastplayer/protocols/websocket"
	"github.com/lisuiheng/fastplayer/utils"
)

var errNotConnected = errors.New("not connected")

const dialTimeout = 5 * time.Second

type connectedMsg struct{}

type disconnectedMsg struct {
	err   error
	retry time.Duration
}

type eventMsg interfaces.Event

// sender 发送控制命令
type sender interface {
	send(cmd interfaces.Command) error
}

// session 维护到服务端的连接，断开后按指数退避重连
type session struct {
	config  websocket.Config
	backoff utils.ReconnectStrategy

	mu     sync.Mutex
	conn   *websocket.WSProtocol
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(cfg websocket.Config) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		config:  cfg,
		backoff: utils.NewExponentialBackoff(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// run 直到 close 被调用，notify 通常是 tea.Program.Send
func (s *session) run(notify func(tea.Msg)) {
	for s.ctx.Err() == nil {
		err := s.connectOnce(notify)
		if s.ctx.Err() != nil {
			return
		}

		delay := s.backoff.NextDelay()
		notify(disconnectedMsg{err: err, retry: delay})
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) connectOnce(notify func(tea.Msg)) error {
	conn, err := websocket.NewWebSocketProtocol(s.config)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, dialTimeout)
	err = conn.Connect(ctx)
	cancel()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	s.backoff.Reset()
	notify(connectedMsg{})

	for {
		select {
		case msg, ok := <-conn.Receive():
			if !ok {
				return errors.New("connection closed")
			}
			if msg.Type != interfaces.MsgText {
				continue
			}
			var ev interfaces.Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				continue
			}
			notify(eventMsg(ev))
		case <-s.ctx.Done():
			return nil
		}
	}
}

func (s *session) send(cmd interfaces.Command) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.Send(data, interfaces.MsgText)
}

func (s *session) close() {
	s.cancel()
}
