package playback

import "sync"

// runLoop 在单个 goroutine 上按投递顺序逐个执行函数
type runLoop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newRunLoop() *runLoop {
	l := &runLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// post 入队 fn，返回是否被接受，不等待 fn 执行
func (l *runLoop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *runLoop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

// flush 等待之前投递的函数全部执行完，不能在 loop 协程内调用
func (l *runLoop) flush() {
	done := make(chan struct{})
	if !l.post(func() { close(done) }) {
		return
	}
	<-done
}

// close 执行完已入队的函数后退出，之后的投递被丢弃
func (l *runLoop) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}
