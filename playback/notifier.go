package playback

import (
	"fmt"
	"log/slog"
	"sync"
)

// State 播放槽状态
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
)

type eventKind int

const (
	eventLoading eventKind = iota
	eventStart
	eventStop
)

type event struct {
	kind    eventKind
	media   MediaReference
	isError bool
}

// load 一次被接受的 Play 请求，引擎回调携带对应的 token
type load struct {
	token uint64
	media MediaReference
}

// Notifier 串行化对单个 Engine 的播放和停止请求，跟踪当前媒体，
// 并把生命周期事件分发给观察者。
//
// 引擎回调先投递到分发协程再访问状态。观察者总在该协程上按事件顺序调用，
// 调用时不持有内部锁，因此可以在回调中再次调用 Notifier。
type Notifier struct {
	mu        sync.Mutex
	engine    Engine
	current   *load
	state     State
	lastToken uint64

	obsMu     sync.Mutex
	observers []Observer

	loop   *runLoop
	logger *slog.Logger
}

// New 创建驱动 engine 的 Notifier，用完后调用 Close
func New(engine Engine, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		engine: engine,
		state:  StateIdle,
		loop:   newRunLoop(),
		logger: logger,
	}
}

// Play 用 media 替换当前播放，source 为空的请求记录日志后丢弃
func (n *Notifier) Play(media MediaReference) {
	if media.Source == "" {
		n.logger.Warn("Play request rejected, empty source", "id", media.ID)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var events []event
	if n.engine.IsPlaying() || n.current != nil {
		if err := n.engine.Stop(); err != nil {
			n.logger.Error("Failed to stop previous playback", "error", err)
		}
		events = n.endLocked(false)
	}

	n.lastToken++
	ld := &load{token: n.lastToken, media: media}
	n.current = ld
	n.state = StateLoading
	events = append(events, event{kind: eventLoading, media: media})
	n.postLocked(events)

	n.logger.Info("Loading media", "id", media.ID, "source", media.Source)
	if err := n.handOff(ld); err != nil {
		// 槽位保留该媒体，由下一次 Play 上报其 stop
		n.logger.Error("Failed to hand off media to engine",
			"id", media.ID,
			"source", media.Source,
			"error", err)
	}
}

// Stop 结束当前播放，引擎空闲时无操作
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.engine.State() {
	case EngineIdle, EngineEnded:
		return
	}

	if err := n.engine.Stop(); err != nil {
		n.logger.Error("Failed to stop engine", "error", err)
	}
	n.postLocked(n.endLocked(false))
}

// Current 返回槽位中的媒体
func (n *Notifier) Current() (MediaReference, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return MediaReference{}, false
	}
	return n.current.media, true
}

// Status 返回槽位状态
func (n *Notifier) Status() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SessionID 返回引擎的音频会话标识
func (n *Notifier) SessionID() int {
	return n.engine.SessionID()
}

// AddObserver 注册 o，重复注册无效
func (n *Notifier) AddObserver(o Observer) {
	n.addObserver(o)
}

func (n *Notifier) addObserver(o Observer) bool {
	n.obsMu.Lock()
	defer n.obsMu.Unlock()

	for _, existing := range n.observers {
		if existing == o {
			return false
		}
	}
	next := make([]Observer, len(n.observers), len(n.observers)+1)
	copy(next, n.observers)
	n.observers = append(next, o)
	return true
}

// RemoveObserver 移除 o，可在回调中调用
func (n *Notifier) RemoveObserver(o Observer) {
	n.obsMu.Lock()
	defer n.obsMu.Unlock()

	next := make([]Observer, 0, len(n.observers))
	for _, existing := range n.observers {
		if existing != o {
			next = append(next, existing)
		}
	}
	n.observers = next
}

// Close 分发完已排队事件后停止分发，不停止引擎
func (n *Notifier) Close() {
	n.loop.close()
}

func (n *Notifier) handOff(ld *load) error {
	listener := &loadListener{notifier: n, token: ld.token}
	if err := n.engine.Prepare(ld.media.Source, listener); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if err := n.engine.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// endLocked 释放当前媒体并返回其 stop 事件
func (n *Notifier) endLocked(isError bool) []event {
	n.state = StateIdle
	if n.current == nil {
		return nil
	}
	media := n.current.media
	n.current = nil
	return []event{{kind: eventStop, media: media, isError: isError}}
}

func (n *Notifier) isCurrentLocked(token uint64) bool {
	return n.current != nil && n.current.token == token
}

func (n *Notifier) onEngineState(token uint64, state EngineState) {
	n.mu.Lock()
	if !n.isCurrentLocked(token) {
		n.mu.Unlock()
		n.logger.Debug("Dropping state of superseded load", "state", state)
		return
	}

	media := n.current.media
	var events []event
	switch state {
	case EngineReady:
		if n.state == StateLoading {
			n.state = StatePlaying
			events = append(events, event{kind: eventStart, media: media})
		}
	case EngineEnded:
		events = n.endLocked(false)
	default:
		n.logger.Debug("Engine state changed", "id", media.ID, "state", state)
	}
	n.mu.Unlock()

	n.deliver(events)
}

func (n *Notifier) onEngineError(token uint64, code int, message string) {
	n.mu.Lock()
	if !n.isCurrentLocked(token) {
		n.mu.Unlock()
		n.logger.Debug("Dropping error of superseded load", "code", code)
		return
	}

	n.logger.Error("Playback failed",
		"id", n.current.media.ID,
		"source", n.current.media.Source,
		"code", code,
		"message", message)
	events := n.endLocked(true)
	n.mu.Unlock()

	n.deliver(events)
}

// postLocked 在持有 mu 时投递事件，保证分发顺序与状态转换顺序一致
func (n *Notifier) postLocked(events []event) {
	if len(events) == 0 {
		return
	}
	if !n.loop.post(func() { n.deliver(events) }) {
		n.logger.Debug("Notifier closed, dropping events", "count", len(events))
	}
}

func (n *Notifier) snapshot() []Observer {
	n.obsMu.Lock()
	defer n.obsMu.Unlock()
	return n.observers
}

// deliver 只在 loop 协程上运行
func (n *Notifier) deliver(events []event) {
	for _, ev := range events {
		for _, o := range n.snapshot() {
			switch ev.kind {
			case eventLoading:
				o.OnLoading(ev.media)
			case eventStart:
				o.OnStart(ev.media)
			case eventStop:
				o.OnStop(ev.media, ev.isError)
			}
		}
	}
}

// loadListener 把一次加载的引擎回调转发到 loop
type loadListener struct {
	notifier *Notifier
	token    uint64
}

func (l *loadListener) OnStateChanged(state EngineState) {
	l.notifier.loop.post(func() { l.notifier.onEngineState(l.token, state) })
}

func (l *loadListener) OnError(code int, message string) {
	l.notifier.loop.post(func() { l.notifier.onEngineError(l.token, code, message) })
}
