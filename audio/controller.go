// audio/controller.go
package audio

import "sync"

// controller 实现录音/播放仲裁逻辑：开始录音时停止播放
type controller struct {
	mu           sync.Mutex
	isRecording  bool
	stopPlayback func()
}

// NewController 创建新的音频控制器实例，stopPlayback 在录音开始时调用
func NewController(stopPlayback func()) Controller {
	if stopPlayback == nil {
		stopPlayback = func() {}
	}
	return &controller{stopPlayback: stopPlayback}
}

func (c *controller) StartRecording() bool {
	c.mu.Lock()
	if c.isRecording {
		c.mu.Unlock()
		return false
	}
	c.isRecording = true
	c.mu.Unlock()

	c.stopPlayback()
	return true
}

func (c *controller) StopRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasRecording := c.isRecording
	c.isRecording = false
	return wasRecording
}

func (c *controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRecording
}
