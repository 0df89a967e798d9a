package playback

import "context"

// AddObserverScoped 注册 o，ctx 结束时移除且只移除一次。
// o 已注册时不做绑定，返回的 unbind 报告 false。
// 在 ctx 结束前调用 unbind 会保留 o 的注册。
func (n *Notifier) AddObserverScoped(ctx context.Context, o Observer) (unbind func() bool) {
	if !n.addObserver(o) {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, func() {
		n.RemoveObserver(o)
	})
}

// StopOnDone 在 ctx 结束时停止播放一次
func (n *Notifier) StopOnDone(ctx context.Context) (unbind func() bool) {
	return context.AfterFunc(ctx, n.Stop)
}
