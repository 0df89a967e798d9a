// audio/interface.go
package audio

import "context"

// Controller 仲裁录音与播放，二者不能同时进行
type Controller interface {
	// StartRecording 已在录音时返回 false，否则停止播放并进入录音状态
	StartRecording() bool
	StopRecording() bool
	IsRecording() bool
}

// Recorder 定义音频采集接口，采集结果写入 WAV 文件
type Recorder interface {
	Record(ctx context.Context, path string) error
}

// AudioPlayer PCM 输出设备接口
type AudioPlayer interface {
	Write(ctx context.Context, data []int16) error
	Pending() int
	Close() error
}

// Decoder 将音频文件解码为交错的 int16 PCM
type Decoder interface {
	Format() Format
	Read(pcm []int16) (int, error)
	Close() error
}

// Format 描述解码后的 PCM 格式
type Format struct {
	SampleRate int
	Channels   int
}
