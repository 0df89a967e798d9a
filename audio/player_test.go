package audio

import (
	"context"
	"testing"
)

func TestAudioCallbackDropsPartialFrame(t *testing.T) {
	p := &PCMPlayer{buffer: make(chan []int16, 4), done: make(chan struct{})}
	ctx := context.Background()

	// 立体声下 3 个样本的块末尾只有半帧
	if err := p.Write(ctx, []int16{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := p.Write(ctx, []int16{4, 5}); err != nil {
		t.Fatal(err)
	}
	if got := p.Pending(); got != 5 {
		t.Fatalf("pending = %d, want 5", got)
	}

	out := [][]float32{make([]float32, 4), make([]float32, 4)}
	p.audioCallback(out)

	want := [][]float32{{1, 4, 0, 0}, {2, 5, 0, 0}}
	for c := range want {
		for i, v := range want[c] {
			if out[c][i] != v/32768.0 {
				t.Fatalf("out[%d][%d] = %v, want %v", c, i, out[c][i], v/32768.0)
			}
		}
	}
	if got := p.Pending(); got != 0 {
		t.Fatalf("pending = %d after draining, want 0", got)
	}
}

func TestAudioCallbackPartialFrameAtEnd(t *testing.T) {
	p := &PCMPlayer{buffer: make(chan []int16, 4), done: make(chan struct{})}
	if err := p.Write(context.Background(), []int16{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	out := [][]float32{make([]float32, 2), make([]float32, 2)}
	p.audioCallback(out)
	if got := p.Pending(); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
	if out[0][1] != 0 || out[1][1] != 0 {
		t.Fatalf("tail not silenced: %v", out)
	}
}
