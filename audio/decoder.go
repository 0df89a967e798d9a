package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var ErrUnknownFormat = errors.New("unknown audio format")

// DecoderOptions 解码参数
type DecoderOptions struct {
	// OpusChannels 无法从 OpusHead 读出声道数时使用
	OpusChannels int
}

// NewDecoder 按扩展名选择解码器，无法识别时读取文件头判断
func NewDecoder(src *Source, opts DecoderOptions) (Decoder, error) {
	kind := strings.ToLower(filepath.Ext(src.Name))
	if kind == "" || !knownExt(kind) {
		sniffed, err := sniff(src)
		if err != nil {
			return nil, err
		}
		kind = sniffed
	}

	switch kind {
	case ".wav":
		return newWAVDecoder(src)
	case ".mp3":
		return newMP3Decoder(src)
	case ".opus", ".ogg":
		return NewOpusStreamDecoder(src, opts.OpusChannels)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, kind)
	}
}

func knownExt(ext string) bool {
	switch ext {
	case ".wav", ".mp3", ".opus", ".ogg":
		return true
	}
	return false
}

func sniff(rs io.ReadSeeker) (string, error) {
	header := make([]byte, 4)
	n, err := io.ReadFull(rs, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read header: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte("RIFF")):
		return ".wav", nil
	case bytes.HasPrefix(header, []byte("OggS")):
		return ".opus", nil
	case bytes.HasPrefix(header, []byte("ID3")):
		return ".mp3", nil
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return ".mp3", nil
	}
	return "", ErrUnknownFormat
}

// wavDecoder 基于 go-audio/wav
type wavDecoder struct {
	dec      *wav.Decoder
	format   Format
	bitDepth int
	buf      *goaudio.IntBuffer
}

func newWAVDecoder(rs io.ReadSeeker) (*wavDecoder, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav file", ErrUnknownFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek to wav pcm data: %w", err)
	}

	f := dec.Format()
	return &wavDecoder{
		dec:      dec,
		format:   Format{SampleRate: f.SampleRate, Channels: f.NumChannels},
		bitDepth: int(dec.BitDepth),
		buf:      &goaudio.IntBuffer{Format: f, SourceBitDepth: int(dec.BitDepth)},
	}, nil
}

func (d *wavDecoder) Format() Format { return d.format }

func (d *wavDecoder) Read(pcm []int16) (int, error) {
	if cap(d.buf.Data) < len(pcm) {
		d.buf.Data = make([]int, len(pcm))
	}
	d.buf.Data = d.buf.Data[:len(pcm)]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("decode wav: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		pcm[i] = scaleToInt16(d.buf.Data[i], d.bitDepth)
	}
	return n, nil
}

func (d *wavDecoder) Close() error { return nil }

func scaleToInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

// mp3Decoder go-mp3 固定输出 16 位小端立体声
type mp3Decoder struct {
	dec *mp3.Decoder
	raw []byte
}

func newMP3Decoder(r io.Reader) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) Format() Format {
	return Format{SampleRate: d.dec.SampleRate(), Channels: 2}
}

func (d *mp3Decoder) Read(pcm []int16) (int, error) {
	size := len(pcm) * 2
	if cap(d.raw) < size {
		d.raw = make([]byte, size)
	}
	d.raw = d.raw[:size]

	n, err := io.ReadFull(d.dec, d.raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(d.raw[i*2:]))
	}

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		if samples == 0 {
			return 0, io.EOF
		}
		return samples, nil
	case err != nil:
		return samples, fmt.Errorf("decode mp3: %w", err)
	}
	return samples, nil
}

func (d *mp3Decoder) Close() error { return nil }
