package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/malgo"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavFormatPCM = 1
)

type recorder struct {
	config Config
	logger *slog.Logger
}

type Config struct {
	SampleRate    int
	Channels      int
	FrameDuration int           // 毫秒
	MaxDuration   time.Duration // 0 表示不限制
}

func NewRecorder(cfg Config, logger *slog.Logger) (Recorder, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("invalid recorder format: %d Hz, %d channels", cfg.SampleRate, cfg.Channels)
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 20
	}

	return &recorder{
		config: cfg,
		logger: logger,
	}, nil
}

// Record 从默认输入设备采集，直到 ctx 取消或达到最大时长，结果写入 path
func (r *recorder) Record(ctx context.Context, path string) (err error) {
	// 计算帧大小 (每声道样本数)
	frameSize := r.config.SampleRate * r.config.FrameDuration / 1000
	if frameSize <= 0 {
		return fmt.Errorf("invalid frame size: %d", frameSize)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create recording dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close recording file: %w", cerr)
		}
	}()

	sink := newWAVSink(file, r.config.SampleRate, r.config.Channels)
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if r.config.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.MaxDuration)
		defer cancel()
	}

	frames := make(chan []int16, 100)

	// 初始化malgo上下文
	ctxMalgo, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		r.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctxMalgo.Uninit()
		ctxMalgo.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(r.config.Channels)
	deviceConfig.SampleRate = uint32(r.config.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(frameSize)

	// 采集回调运行在音频线程，不能阻塞
	captureCallback := func(_, pcmData []byte, _ uint32) {
		select {
		case frames <- bytesToInt16(pcmData):
		default:
			r.logger.Warn("Recording buffer full, dropping frame")
		}
	}

	device, err := malgo.InitDevice(ctxMalgo.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: captureCallback,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}

	r.logger.Info("Audio recording started",
		"path", path,
		"sample_rate", r.config.SampleRate,
		"channels", r.config.Channels,
		"frame_size", frameSize)

	for {
		select {
		case pcm := <-frames:
			if err := sink.Write(pcm); err != nil {
				_ = device.Stop()
				return err
			}
		case <-ctx.Done():
			_ = device.Stop()
			// 写入设备停止前已采集的数据
			for {
				select {
				case pcm := <-frames:
					if err := sink.Write(pcm); err != nil {
						return err
					}
				default:
					r.logger.Info("Audio recording stopped", "path", path, "samples", sink.samples)
					if errors.Is(ctx.Err(), context.DeadlineExceeded) {
						r.logger.Info("Recording reached max duration", "max", r.config.MaxDuration)
					}
					return nil
				}
			}
		}
	}
}

// wavSink 将 16 位 PCM 写入 WAV 文件
type wavSink struct {
	enc     *wav.Encoder
	format  *goaudio.Format
	samples int
	scratch []int
}

func newWAVSink(file *os.File, sampleRate, channels int) *wavSink {
	return &wavSink{
		enc:    wav.NewEncoder(file, sampleRate, wavBitDepth, channels, wavFormatPCM),
		format: &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
}

func (s *wavSink) Write(pcm []int16) error {
	if cap(s.scratch) < len(pcm) {
		s.scratch = make([]int, len(pcm))
	}
	data := s.scratch[:len(pcm)]
	for i, v := range pcm {
		data[i] = int(v)
	}

	buf := &goaudio.IntBuffer{Format: s.format, Data: data, SourceBitDepth: wavBitDepth}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	s.samples += len(pcm)
	return nil
}

// Close 回填 WAV 头中的长度字段
func (s *wavSink) Close() error {
	if err := s.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav file: %w", err)
	}
	return nil
}

// bytesToInt16 将byte切片转换为int16切片
func bytesToInt16(b []byte) []int16 {
	if len(b)%2 != 0 {
		b = b[:len(b)-1] // 确保长度是偶数
	}

	pcm := make([]int16, len(b)/2)
	for i := 0; i < len(pcm); i++ {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
