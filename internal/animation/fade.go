// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"
	"math"
)

// CrossFade returns the frames of a cyclic cross-fade animation through
// the provided keyframes. Each keyframe is followed by n frames blending
// it toward the next keyframe at fractions 0/n, 1/n, ... (n-1)/n, with the
// last keyframe fading back into the first. The result holds
// len(frames)*(n+1) frames and keyframes are included without copying.
// If n is zero, frames is returned unaltered.
//
// All keyframes must have the same bounds. A single keyframe is accepted
// and produces n copies of itself.
func CrossFade(frames []*image.NRGBA, n int) []*image.NRGBA {
	if n <= 0 || len(frames) == 0 {
		return frames
	}
	seq := make([]*image.NRGBA, 0, len(frames)*(n+1))
	for i, curr := range frames {
		next := frames[(i+1)%len(frames)]
		seq = append(seq, curr)
		for j := 0; j < n; j++ {
			seq = append(seq, Blend(curr, next, float64(j)/float64(n)))
		}
	}
	return seq
}

// Blend returns a new image holding the linear interpolation of a and b
// at fraction t, where t=0 gives a and t=1 gives b. Each channel,
// including alpha, is interpolated independently on the stored
// non-premultiplied values and rounded to the nearest integer with
// halves rounded away from zero. No gamma correction is performed.
//
// The bounds of b must contain the bounds of a.
func Blend(a, b *image.NRGBA, t float64) *image.NRGBA {
	r := a.Bounds()
	dst := image.NewNRGBA(r)
	n := 4 * r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		pa := a.Pix[a.PixOffset(r.Min.X, y):][:n]
		pb := b.Pix[b.PixOffset(r.Min.X, y):][:n]
		pd := dst.Pix[dst.PixOffset(r.Min.X, y):][:n]
		for i := range pd {
			pd[i] = lerp(pa[i], pb[i], t)
		}
	}
	return dst
}

// lerp returns round((1-t)*a + t*b) clamped to the range of a uint8.
func lerp(a, b uint8, t float64) uint8 {
	v := math.Round((1-t)*float64(a) + t*float64(b))
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(v)
}
