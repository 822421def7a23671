package pipeline

import (
	"testing"

	"matting-core/internal/config"
)

func flatRGBA(h, w int, r, g, b, a byte) []byte {
	out := make([]byte, h*w*4)
	for i := 0; i < h*w; i++ {
		out[i*4] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = a
	}
	return out
}

func TestRunRejectsInvalidParameters(t *testing.T) {
	p := New(nil, nil)
	params := config.Default()
	params.Eps = 0
	_, err := p.Run(Request{RGBA: flatRGBA(4, 4, 10, 10, 10, 255), H: 4, W: 4, Params: params})
	if err == nil {
		t.Fatal("expected an error for invalid parameters")
	}
}

func TestRunRejectsBufferLengthMismatch(t *testing.T) {
	p := New(nil, nil)
	_, err := p.Run(Request{RGBA: make([]byte, 10), H: 4, W: 4, Params: config.Default()})
	if err == nil {
		t.Fatal("expected an error for a short RGBA buffer")
	}
}

func TestRunFlatImageProducesFullAlpha(t *testing.T) {
	p := New(nil, nil)
	h, w := 6, 6
	rgba := flatRGBA(h, w, 120, 80, 60, 255)
	params := config.Default()
	params.ErodeStructureSize = 0
	resp, err := p.Run(Request{RGBA: rgba, H: h, W: w, Params: params})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Status != OK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
	for i, a := range resp.Alpha.Data {
		if a != 1.0 {
			t.Fatalf("alpha[%d] = %v, want 1.0 for an all-foreground trimap", i, a)
		}
	}
	if len(resp.RGBA) != h*w*4 {
		t.Fatalf("output RGBA length = %d, want %d", len(resp.RGBA), h*w*4)
	}
}

func TestRunEmitsExpectedProgressTicks(t *testing.T) {
	p := New(nil, nil)
	h, w := 6, 6
	rgba := flatRGBA(h, w, 200, 200, 200, 255)
	var ticks []int
	_, err := p.Run(Request{
		RGBA:   rgba,
		H:      h,
		W:      w,
		Params: config.Default(),
		Progress: func(percent int, message string) {
			ticks = append(ticks, percent)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int{5, 10, 30, 70, 90, 100}
	if len(ticks) != len(want) {
		t.Fatalf("got %d ticks %v, want %d ticks %v", len(ticks), ticks, len(want), want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("tick[%d] = %d, want %d", i, ticks[i], want[i])
		}
	}
}

func TestRunRecordsStageTimings(t *testing.T) {
	p := New(nil, nil)
	h, w := 6, 6
	rgba := flatRGBA(h, w, 90, 90, 90, 255)
	if _, err := p.Run(Request{RGBA: rgba, H: h, W: w, Params: config.Default()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, stage := range []string{"decode", "trimap", "solve", "foreground", "encode"} {
		if p.Timing().Average(stage) == 0 {
			t.Fatalf("stage %q has no recorded timing", stage)
		}
	}
}

func TestRunHonorsCancelAtFirstBoundary(t *testing.T) {
	p := New(nil, nil)
	h, w := 6, 6
	rgba := flatRGBA(h, w, 50, 50, 50, 255)
	calls := 0
	resp, err := p.Run(Request{
		RGBA:   rgba,
		H:      h,
		W:      w,
		Params: config.Default(),
		Cancel: func() bool { calls++; return true },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Status != Cancelled {
		t.Fatalf("status = %v, want Cancelled", resp.Status)
	}
	if resp.RGBA != nil {
		t.Fatal("cancelled response should carry no output buffer")
	}
	if calls != 1 {
		t.Fatalf("Cancel called %d times, want exactly 1 (checked at the first stage boundary)", calls)
	}
}
