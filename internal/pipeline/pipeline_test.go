// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/xfade/internal/locked"
	"github.com/kortschak/xfade/internal/slogext"
	"github.com/kortschak/xfade/internal/webp"
)

func uniform(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

func testLogger(t *testing.T) (*slog.Logger, *locked.BytesBuffer) {
	var buf locked.BytesBuffer
	log := slog.New(slogext.NewJSONHandler(&buf, &slogext.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: slogext.NewAtomicBool(true),
	}))
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("log:\n%s\n", &buf)
		}
	})
	return log, &buf
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		images []image.Image
		params Params

		wantFrames   int
		wantCanvas   image.Point
		wantDuration time.Duration
		wantLossless bool
	}{
		{
			name:         "centered_transitions",
			images:       []image.Image{uniform(10, 10, red), uniform(20, 20, blue)},
			params:       Params{Delay: 500 * time.Millisecond, Quality: 80, Transitions: 4},
			wantFrames:   10,
			wantCanvas:   image.Pt(20, 20),
			wantDuration: 100 * time.Millisecond,
		},
		{
			name:         "lossless",
			images:       []image.Image{uniform(6, 4, red), uniform(4, 6, blue), uniform(5, 5, red)},
			params:       Params{Delay: 2 * time.Second, Quality: 100, Transitions: 0},
			wantFrames:   3,
			wantCanvas:   image.Pt(6, 6),
			wantDuration: 2 * time.Second,
			wantLossless: true,
		},
		{
			name:         "many_transitions",
			images:       []image.Image{uniform(4, 4, red), uniform(4, 4, blue)},
			params:       Params{Delay: 100 * time.Millisecond, Quality: 1, Transitions: 30},
			wantFrames:   62,
			wantCanvas:   image.Pt(4, 4),
			wantDuration: 3 * time.Millisecond,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			log, logBuf := testLogger(t)
			res, err := Run(context.Background(), Request{Images: test.images, Params: test.params}, log)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Name != "animation.webp" {
				t.Errorf("unexpected name: got:%q want:%q", res.Name, "animation.webp")
			}
			if res.MIMEType != "image/webp" {
				t.Errorf("unexpected mime type: got:%q want:%q", res.MIMEType, "image/webp")
			}
			if res.Frames != test.wantFrames {
				t.Errorf("unexpected number of frames: got:%d want:%d", res.Frames, test.wantFrames)
			}
			if res.Canvas != test.wantCanvas {
				t.Errorf("unexpected canvas: got:%v want:%v", res.Canvas, test.wantCanvas)
			}
			if res.FrameDuration != test.wantDuration {
				t.Errorf("unexpected frame duration: got:%v want:%v", res.FrameDuration, test.wantDuration)
			}

			info, err := webp.Inspect(bytes.NewReader(res.Data))
			if err != nil {
				t.Fatalf("failed to inspect result: %v", err)
			}
			if got := image.Pt(info.Width, info.Height); got != test.wantCanvas {
				t.Errorf("unexpected encoded canvas: got:%v want:%v", got, test.wantCanvas)
			}
			if info.LoopCount != 0 {
				t.Errorf("unexpected loop count: got:%d want:0", info.LoopCount)
			}
			if len(info.Frames) != test.wantFrames {
				t.Fatalf("unexpected number of encoded frames: got:%d want:%d", len(info.Frames), test.wantFrames)
			}
			for i, f := range info.Frames {
				if f.Duration != test.wantDuration {
					t.Errorf("unexpected duration for frame %d: got:%v want:%v", i, f.Duration, test.wantDuration)
				}
				if f.Lossless != test.wantLossless {
					t.Errorf("unexpected lossless state for frame %d: got:%t want:%t", i, f.Lossless, test.wantLossless)
				}
			}
			if !strings.Contains(logBuf.String(), `"component":"pipeline"`) {
				t.Errorf("missing component in log:\n%s", logBuf)
			}
		})
	}
}

func TestRunCentering(t *testing.T) {
	log, _ := testLogger(t)
	res, err := Run(context.Background(), Request{
		Images: []image.Image{uniform(2, 2, red), uniform(6, 6, blue)},
		Params: Params{Delay: time.Second, Quality: 100},
	}, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frames, _, err := webp.DecodeFrames(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("failed to decode frames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("unexpected number of frames: got:%d want:2", len(frames))
	}
	small := frames[0]
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			_, _, _, a := small.At(x, y).RGBA()
			inside := image.Pt(x, y).In(image.Rect(2, 2, 4, 4))
			if inside != (a == 0xffff) {
				t.Errorf("unexpected alpha at (%d,%d): got:%#x inside:%t", x, y, a, inside)
			}
		}
	}
}

func TestRunErrors(t *testing.T) {
	two := []image.Image{uniform(2, 2, red), uniform(2, 2, blue)}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		req       Request
		wantErr   error
		wantParam string
	}{
		{
			name:    "no_images",
			ctx:     context.Background(),
			req:     Request{Params: DefaultParams()},
			wantErr: ErrTooFewImages,
		},
		{
			name:    "one_image",
			ctx:     context.Background(),
			req:     Request{Images: two[:1], Params: DefaultParams()},
			wantErr: ErrTooFewImages,
		},
		{
			name:      "bad_quality",
			ctx:       context.Background(),
			req:       Request{Images: two, Params: Params{Delay: time.Second, Quality: 0}},
			wantParam: "quality",
		},
		{
			name:    "canceled",
			ctx:     canceled,
			req:     Request{Images: two, Params: DefaultParams()},
			wantErr: context.Canceled,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			log, _ := testLogger(t)
			res, err := Run(test.ctx, test.req, log)
			if err == nil {
				t.Fatalf("expected error, got result: %+v", res)
			}
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Errorf("unexpected error: got:%v want:%v", err, test.wantErr)
			}
			if test.wantParam != "" {
				var perr *ParamError
				if !errors.As(err, &perr) {
					t.Fatalf("unexpected error type: got:%T want:%T", err, perr)
				}
				if perr.Name != test.wantParam {
					t.Errorf("unexpected parameter: got:%q want:%q", perr.Name, test.wantParam)
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		params  Params
		wantErr string
	}{
		{params: DefaultParams()},
		{params: Params{Delay: MinDelay, Quality: MinQuality}},
		{params: Params{Delay: MaxDelay, Quality: MaxQuality, Transitions: MaxTransitions}},
		{
			params:  Params{Delay: 0, Quality: 80},
			wantErr: "invalid delay 0s: must be between 100ms and 2s",
		},
		{
			params:  Params{Delay: 2100 * time.Millisecond, Quality: 80},
			wantErr: "invalid delay 2.1s: must be between 100ms and 2s",
		},
		{
			params:  Params{Delay: 150 * time.Millisecond, Quality: 80},
			wantErr: "invalid delay 150ms: must be a multiple of 100ms",
		},
		{
			params:  Params{Delay: time.Second, Quality: 101},
			wantErr: "invalid quality 101: must be between 1 and 100",
		},
		{
			params:  Params{Delay: time.Second, Quality: 80, Transitions: -1},
			wantErr: "invalid transitions -1: must be between 0 and 30",
		},
		{
			params:  Params{Delay: time.Second, Quality: 80, Transitions: 31},
			wantErr: "invalid transitions 31: must be between 0 and 30",
		},
	}
	for _, test := range tests {
		err := test.params.Validate()
		var got string
		if err != nil {
			got = err.Error()
		}
		if got != test.wantErr {
			t.Errorf("unexpected error for %+v: got:%q want:%q", test.params, got, test.wantErr)
		}
	}
}

func TestEncoder(t *testing.T) {
	tests := []struct {
		quality int
		want    webp.Encoder
	}{
		{quality: 1, want: webp.Encoder{Quality: 1}},
		{quality: 80, want: webp.Encoder{Quality: 80}},
		{quality: 99, want: webp.Encoder{Quality: 99}},
		{quality: 100, want: webp.Encoder{Lossless: true, Quality: 100}},
	}
	for _, test := range tests {
		got := Params{Delay: time.Second, Quality: test.quality}.Encoder()
		if !cmp.Equal(got, test.want) {
			t.Errorf("unexpected encoder for quality %d:\n--- want:\n+++ got:\n%s", test.quality, cmp.Diff(test.want, got))
		}
	}
}

func TestPreview(t *testing.T) {
	_, err := Preview(nil)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("unexpected error for no images: got:%v want:%v", err, ErrNoImages)
	}

	got, err := Preview([]image.Image{uniform(3, 1, red)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Rect != image.Rect(0, 0, 3, 1) {
		t.Errorf("unexpected single preview: %v", got)
	}

	got, err = Preview([]image.Image{uniform(3, 1, red), uniform(1, 5, blue)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, img := range got {
		if img.Rect != image.Rect(0, 0, 3, 5) {
			t.Errorf("unexpected bounds for preview %d: got:%v want:%v", i, img.Rect, image.Rect(0, 0, 3, 5))
		}
	}
	if c := got[0].NRGBAAt(1, 2); c != red {
		t.Errorf("unexpected center of first preview: got:%v want:%v", c, red)
	}
	if c := got[0].NRGBAAt(1, 0); c.A != 0 {
		t.Errorf("unexpected opaque padding in first preview: %v", c)
	}
}

func TestEstimateMemory(t *testing.T) {
	tests := []struct {
		n           int
		canvas      image.Point
		transitions int
		want        int64
	}{
		{n: 2, canvas: image.Pt(20, 20), transitions: 4, want: 2 * 5 * 20 * 20 * 4},
		{n: 3, canvas: image.Pt(10, 5), transitions: 0, want: 3 * 10 * 5 * 4},
		{n: 2, canvas: image.Pt(10, 5), transitions: -1, want: 2 * 10 * 5 * 4},
		{n: 100, canvas: image.Pt(16383, 16383), transitions: 30, want: 100 * 31 * 16383 * 16383 * 4},
	}
	for _, test := range tests {
		got := EstimateMemory(test.n, test.canvas, test.transitions)
		if got != test.want {
			t.Errorf("unexpected estimate for %d %v %d: got:%d want:%d", test.n, test.canvas, test.transitions, got, test.want)
		}
	}
}

func TestState(t *testing.T) {
	stages := []struct {
		n          int
		want       State
		canTrigger bool
	}{
		{n: 0, want: AwaitingUpload},
		{n: 1, want: PreviewReady},
		{n: 2, want: PreviewReady, canTrigger: true},
		{n: 10, want: PreviewReady, canTrigger: true},
	}
	for _, test := range stages {
		if got := Stage(test.n); got != test.want {
			t.Errorf("unexpected stage for %d images: got:%v want:%v", test.n, got, test.want)
		}
		if got := CanTrigger(test.n); got != test.canTrigger {
			t.Errorf("unexpected trigger state for %d images: got:%t want:%t", test.n, got, test.canTrigger)
		}
	}

	names := map[State]string{
		AwaitingUpload: "awaiting upload",
		Delivered:      "delivered",
		State(-1):      "State(-1)",
		State(99):      "State(99)",
	}
	for s, want := range names {
		if got := s.String(); got != want {
			t.Errorf("unexpected state name: got:%q want:%q", got, want)
		}
	}
}
