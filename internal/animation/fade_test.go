// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestCrossFadeIdentity(t *testing.T) {
	frames := []*image.NRGBA{uniform(2, 2, red), uniform(2, 2, green)}
	got := CrossFade(frames, 0)
	if len(got) != len(frames) {
		t.Fatalf("unexpected number of frames: got:%d want:%d", len(got), len(frames))
	}
	for i := range got {
		if got[i] != frames[i] {
			t.Errorf("unexpected frame at %d: not identical to input", i)
		}
	}
}

var crossFadeTests = []struct {
	name   string
	frames []*image.NRGBA
	n      int
}{
	{
		name:   "two_four",
		frames: []*image.NRGBA{uniform(3, 2, red), uniform(3, 2, green)},
		n:      4,
	},
	{
		name:   "three_one",
		frames: []*image.NRGBA{uniform(1, 1, red), uniform(1, 1, green), uniform(1, 1, blue)},
		n:      1,
	},
	{
		name:   "transparent_thirty",
		frames: []*image.NRGBA{uniform(2, 2, transparent), uniform(2, 2, blue)},
		n:      30,
	},
	{
		name:   "single",
		frames: []*image.NRGBA{uniform(2, 3, blue)},
		n:      3,
	},
}

func TestCrossFade(t *testing.T) {
	for _, test := range crossFadeTests {
		t.Run(test.name, func(t *testing.T) {
			got := CrossFade(test.frames, test.n)
			want := len(test.frames) * (test.n + 1)
			if len(got) != want {
				t.Fatalf("unexpected number of frames: got:%d want:%d", len(got), want)
			}
			for i, curr := range test.frames {
				next := test.frames[(i+1)%len(test.frames)]
				group := got[i*(test.n+1) : (i+1)*(test.n+1)]
				if group[0] != curr {
					t.Errorf("keyframe %d not at start of group", i)
				}
				for j, frame := range group[1:] {
					if frame.Bounds() != curr.Bounds() {
						t.Errorf("unexpected bounds for frame %d.%d: got:%v want:%v", i, j, frame.Bounds(), curr.Bounds())
						continue
					}
					alpha := float64(j) / float64(test.n)
					for k, v := range frame.Pix {
						w := (1-alpha)*float64(curr.Pix[k]) + alpha*float64(next.Pix[k])
						if math.Abs(float64(v)-w) > 1 {
							t.Fatalf("unexpected value for frame %d.%d at %d: got:%d want:%.2f±1", i, j, k, v, w)
						}
					}
				}
			}
		})
	}
}

func TestCrossFadeWraps(t *testing.T) {
	frames := []*image.NRGBA{uniform(1, 1, red), uniform(1, 1, green)}
	got := CrossFade(frames, 2)
	// The second transition of the last group is half way back to red.
	want := color.NRGBA{R: 0x80, G: 0x80, A: 0xff}
	if c := got[5].NRGBAAt(0, 0); c != want {
		t.Errorf("unexpected wrap-around blend: got:%v want:%v", c, want)
	}
}

var blendTests = []struct {
	a, b uint8
	t    float64
	want uint8
}{
	{a: 0, b: 255, t: 0, want: 0},
	{a: 0, b: 255, t: 0.5, want: 128},
	{a: 255, b: 0, t: 0.5, want: 128},
	{a: 0, b: 1, t: 0.5, want: 1},
	{a: 1, b: 2, t: 0.5, want: 2},
	{a: 10, b: 20, t: 0.25, want: 13},
	{a: 10, b: 20, t: 0.2, want: 12},
	{a: 255, b: 255, t: 0.9, want: 255},
}

func TestBlend(t *testing.T) {
	for _, test := range blendTests {
		a := uniform(1, 1, color.NRGBA{R: test.a, G: test.a, B: test.a, A: test.a})
		b := uniform(1, 1, color.NRGBA{R: test.b, G: test.b, B: test.b, A: test.b})
		got := Blend(a, b, test.t)
		want := color.NRGBA{R: test.want, G: test.want, B: test.want, A: test.want}
		if c := got.NRGBAAt(0, 0); c != want {
			t.Errorf("unexpected blend of %d and %d at %v: got:%v want:%v", test.a, test.b, test.t, c, want)
		}
	}
}
