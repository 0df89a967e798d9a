package audio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hraban/opus"
)

// opusSampleRate opusfile 总是以 48kHz 输出
const opusSampleRate = 48000

// OpusStreamDecoder Ogg Opus 文件解码器
type OpusStreamDecoder struct {
	stream   *opus.Stream
	channels int
}

// NewOpusStreamDecoder 创建新的 Ogg Opus 解码器，声道数取自 OpusHead，
// 读取失败时才使用 fallback
func NewOpusStreamDecoder(r io.Reader, fallback int) (*OpusStreamDecoder, error) {
	br := bufio.NewReader(r)
	channels, err := opusHeadChannels(br)
	if err != nil {
		channels = fallback
	}
	if channels <= 0 {
		channels = 1
	}

	stream, err := opus.NewStream(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus stream: %w", err)
	}

	return &OpusStreamDecoder{
		stream:   stream,
		channels: channels,
	}, nil
}

// opusHeadChannels 从第一个 Ogg 页的 OpusHead 包中读取声道数（第 9 字节）
func opusHeadChannels(br *bufio.Reader) (int, error) {
	hdr, err := br.Peek(27)
	if err != nil {
		return 0, fmt.Errorf("read ogg page header: %w", err)
	}
	if !bytes.Equal(hdr[:4], []byte("OggS")) {
		return 0, errors.New("missing ogg capture pattern")
	}

	start := 27 + int(hdr[26])
	page, err := br.Peek(start + 19)
	if err != nil {
		return 0, fmt.Errorf("read opus head: %w", err)
	}
	head := page[start:]
	if !bytes.HasPrefix(head, []byte("OpusHead")) {
		return 0, errors.New("first ogg packet is not OpusHead")
	}
	if head[9] == 0 {
		return 0, errors.New("opus head has no channels")
	}
	return int(head[9]), nil
}

func (d *OpusStreamDecoder) Format() Format {
	return Format{SampleRate: opusSampleRate, Channels: d.channels}
}

// Read 解码交错PCM，返回样本总数
func (d *OpusStreamDecoder) Read(pcm []int16) (int, error) {
	if d.stream == nil {
		return 0, errors.New("decoder not initialized")
	}

	n, err := d.stream.Read(pcm)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("opus decode failed: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	// Stream.Read 返回每声道样本数
	return n * d.channels, nil
}

// Close 释放解码器资源
func (d *OpusStreamDecoder) Close() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	return err
}
