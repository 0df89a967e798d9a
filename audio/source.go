package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrSourceTooLarge    = errors.New("source too large")
)

// DefaultMaxSourceBytes 远程音频默认最大缓冲大小
const DefaultMaxSourceBytes = 64 << 20

// Source 是打开后的音频资源，Name 用于按扩展名选择解码器
type Source struct {
	io.ReadSeeker
	Name   string
	closer io.Closer
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SourceOptions 控制远程资源的获取方式
type SourceOptions struct {
	Client   *http.Client
	MaxBytes int64
}

// OpenSource 打开本地路径、file:// 或 http(s):// 资源
func OpenSource(ctx context.Context, locator string, opts SourceOptions) (*Source, error) {
	if locator == "" {
		return nil, fmt.Errorf("%w: empty locator", ErrUnsupportedSource)
	}

	if !strings.Contains(locator, "://") {
		return openFile(locator)
	}

	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parse locator %q: %w", locator, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		return openRemote(ctx, u, opts)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
	}
}

func openFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Source{ReadSeeker: f, Name: path, closer: f}, nil
}

// openRemote 将响应体整体读入内存，解码器需要可 Seek 的输入
func openRemote(ctx context.Context, u *url.URL, opts SourceOptions) (*Source, error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSourceBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", u.Redacted(), resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Redacted(), err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, maxBytes)
	}

	return &Source{ReadSeeker: bytes.NewReader(data), Name: u.Path}, nil
}
