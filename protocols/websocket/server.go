// protocols/websocket/server.go
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/fastplayer/logger"
	"github.com/lisuiheng/fastplayer/pkg/interfaces"
	"github.com/lisuiheng/fastplayer/playback"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Service 控制通道依赖的播放能力，由 core.Client 实现
type Service interface {
	Play(id, source string) playback.MediaReference
	Stop()
	StartRecording() error
	StopRecording() (string, error)
	PlayRecording() (playback.MediaReference, error)
	Status() interfaces.Status
	AddObserverScoped(ctx context.Context, o playback.Observer) func() bool
	StopOnDone(ctx context.Context) func() bool
}

// ServerConfig 控制服务配置
type ServerConfig struct {
	AccessToken      string
	StopOnDisconnect bool
	// AllowedOrigins 允许的跨域来源，如 http://localhost:3000；同源和不带 Origin 的客户端总是放行
	AllowedOrigins []string
}

// ControlServer 把 websocket 连接接到播放服务上，每个连接注册一个观察者，
// 连接断开时观察者自动解除
type ControlServer struct {
	config   ServerConfig
	service  Service
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*controlConn]struct{}
	wg    sync.WaitGroup
}

func NewControlServer(cfg ServerConfig, service Service, logger *slog.Logger) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ControlServer{
		config:  cfg,
		service: service,
		logger:  logger,
		conns:   make(map[*controlConn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin 拒绝浏览器页面的跨域连接
func (s *ControlServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.config.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	s.logger.Warn("Rejected cross-origin control connection", "origin", origin, "remote", r.RemoteAddr)
	return false
}

func (s *ControlServer) authorized(r *http.Request) bool {
	if s.config.AccessToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.config.AccessToken
}

func (s *ControlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("Rejected control connection", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &controlConn{
		ws:     ws,
		send:   make(chan interfaces.Event, sendBuffer),
		logger: s.logger.With("remote", r.RemoteAddr, "client", r.Header.Get("Client-Id")),
	}
	if !s.track(c) {
		cancel()
		_ = ws.Close()
		return
	}
	defer s.untrack(c)

	c.logger.Info("Control client connected")

	// 观察者和断开即停止都绑定在连接的生命周期上
	_ = s.service.AddObserverScoped(ctx, &connObserver{conn: c})
	if s.config.StopOnDisconnect {
		_ = s.service.StopOnDone(ctx)
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		c.writePump(ctx)
	}()

	status := s.service.Status()
	c.enqueue(interfaces.Event{Type: interfaces.EventStatus, Status: &status})

	s.readLoop(c)

	cancel()
	<-pumpDone
	_ = ws.Close()
	c.logger.Info("Control client disconnected")
}

func (s *ControlServer) track(c *controlConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *ControlServer) untrack(c *controlConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// Close 断开所有连接并等待处理协程退出，之后的连接会被拒绝
func (s *ControlServer) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	for c := range conns {
		_ = c.ws.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *ControlServer) readLoop(c *controlConn) {
	c.ws.SetReadLimit(64 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Control connection read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Debug("Ignoring non-text frame", "type", convertMsgType(msgType))
			continue
		}
		logger.JSON(c.logger, "Received command", data)

		var cmd interfaces.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.enqueue(errorEvent("invalid command: " + err.Error()))
			continue
		}
		s.handle(c, cmd)
	}
}

func (s *ControlServer) handle(c *controlConn, cmd interfaces.Command) {
	switch cmd.Type {
	case interfaces.CmdPlay:
		if cmd.Source == "" {
			c.enqueue(errorEvent("play requires a source"))
			return
		}
		s.service.Play(cmd.ID, cmd.Source)
	case interfaces.CmdStop:
		s.service.Stop()
	case interfaces.CmdStatus:
		status := s.service.Status()
		c.enqueue(interfaces.Event{Type: interfaces.EventStatus, Status: &status})
	case interfaces.CmdRecordStart:
		if err := s.service.StartRecording(); err != nil {
			c.enqueue(errorEvent(err.Error()))
		}
	case interfaces.CmdRecordStop:
		path, err := s.service.StopRecording()
		if err != nil {
			c.enqueue(errorEvent(err.Error()))
			return
		}
		c.enqueue(interfaces.Event{Type: interfaces.EventRecorded, Path: path})
	case interfaces.CmdPlayRecord:
		if _, err := s.service.PlayRecording(); err != nil {
			c.enqueue(errorEvent(err.Error()))
		}
	default:
		c.enqueue(errorEvent("unknown command: " + cmd.Type))
	}
}

func errorEvent(msg string) interfaces.Event {
	return interfaces.Event{Type: interfaces.EventError, Message: msg}
}

type controlConn struct {
	ws     *websocket.Conn
	send   chan interfaces.Event
	logger *slog.Logger
}

// enqueue 不阻塞，缓冲区满时丢弃事件
func (c *controlConn) enqueue(ev interfaces.Event) {
	select {
	case c.send <- ev:
	default:
		c.logger.Warn("Control client too slow, dropping event", "type", ev.Type)
	}
}

func (c *controlConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				c.logger.Warn("Control connection write failed", "error", err)
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

// connObserver 把播放事件转成控制通道事件
type connObserver struct {
	conn *controlConn
}

func mediaOf(m playback.MediaReference) *interfaces.Media {
	return &interfaces.Media{ID: m.ID, Source: m.Source}
}

func (o *connObserver) OnLoading(media playback.MediaReference) {
	o.conn.enqueue(interfaces.Event{Type: interfaces.EventLoading, Media: mediaOf(media)})
}

func (o *connObserver) OnStart(media playback.MediaReference) {
	o.conn.enqueue(interfaces.Event{Type: interfaces.EventStart, Media: mediaOf(media)})
}

func (o *connObserver) OnStop(media playback.MediaReference, isError bool) {
	o.conn.enqueue(interfaces.Event{Type: interfaces.EventStop, Media: mediaOf(media), IsError: isError})
}
