package audio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSourceLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := os.WriteFile(path, []byte("RIFFdata"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, locator := range []string{path, "file://" + path} {
		src, err := OpenSource(context.Background(), locator, SourceOptions{})
		if err != nil {
			t.Fatalf("OpenSource(%q): %v", locator, err)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "RIFFdata" {
			t.Fatalf("OpenSource(%q) read %q", locator, data)
		}
		if src.Name != path {
			t.Fatalf("name = %q, want %q", src.Name, path)
		}
	}
}

func TestOpenSourceRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.mp3":
			_, _ = w.Write([]byte("ID3 remote audio"))
		case "/big.wav":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := OpenSource(context.Background(), srv.URL+"/clip.mp3", SourceOptions{Client: srv.Client()})
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	data, _ := io.ReadAll(src)
	if string(data) != "ID3 remote audio" || src.Name != "/clip.mp3" {
		t.Fatalf("remote source = %q (%s)", data, src.Name)
	}
	// 远程资源需要支持 Seek
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}

	if _, err := OpenSource(context.Background(), srv.URL+"/missing.wav", SourceOptions{Client: srv.Client()}); err == nil {
		t.Fatal("expected error for 404")
	}

	_, err = OpenSource(context.Background(), srv.URL+"/big.wav", SourceOptions{Client: srv.Client(), MaxBytes: 16})
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("err = %v, want ErrSourceTooLarge", err)
	}
}

func TestOpenSourceRejects(t *testing.T) {
	tests := []struct {
		name    string
		locator string
	}{
		{name: "empty", locator: ""},
		{name: "content uri", locator: "content://media/external/audio/1"},
		{name: "ftp", locator: "ftp://example.com/a.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenSource(context.Background(), tt.locator, SourceOptions{})
			if !errors.Is(err, ErrUnsupportedSource) {
				t.Fatalf("err = %v, want ErrUnsupportedSource", err)
			}
		})
	}
}

func TestOpenSourceMissingFile(t *testing.T) {
	_, err := OpenSource(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), SourceOptions{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}
