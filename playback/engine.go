package playback

// EngineState 底层播放器上报的状态
type EngineState string

const (
	EngineIdle      EngineState = "idle"
	EngineBuffering EngineState = "buffering"
	EngineReady     EngineState = "ready"
	EngineEnded     EngineState = "ended"
)

// Engine 底层播放器，由 Notifier 串行访问。
//
// Prepare 开始加载 source，本次加载的状态变化和错误都上报给 l。
// l 可以在任意 goroutine 上调用，也可以在 Prepare/Start 返回前同步调用；
// Notifier 只把回调放入分发队列，不会在回调中获取自身的锁。
type Engine interface {
	Prepare(source string, l EngineListener) error
	Start() error
	Stop() error
	State() EngineState
	IsPlaying() bool
	SessionID() int
}

// EngineListener 接收一次加载的状态和错误
type EngineListener interface {
	OnStateChanged(state EngineState)
	OnError(code int, message string)
}
