// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package preview renders contact sheets of canvas frames.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/kortschak/xfade/internal/text"
)

// Sheet layout.
const (
	// DefaultThumb is the thumbnail cell size used
	// when Sheet is called with a non-positive size.
	DefaultThumb = 160

	MaxColumns    = 4
	Padding       = 4
	CaptionHeight = 16
)

var (
	Background   = color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	CaptionColor = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

	checkLight = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	checkDark  = color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
)

// Captions returns the default captions for n frames: "Image 1" to
// "Image n".
func Captions(n int) []string {
	c := make([]string, n)
	for i := range c {
		c[i] = fmt.Sprintf("Image %d", i+1)
	}
	return c
}

// Sheet returns a contact sheet of frames laid out in rows of up to
// MaxColumns cells of thumb×thumb pixels. Each frame is scaled to fit its
// cell, preserving its aspect ratio, over a checkerboard that shows the
// frame's transparent regions and its caption is written below it. If
// captions is nil, the default captions are used.
func Sheet(frames []image.Image, captions []string, thumb int) *image.NRGBA {
	if thumb <= 0 {
		thumb = DefaultThumb
	}
	if captions == nil {
		captions = Captions(len(frames))
	}
	if len(frames) == 0 {
		return image.NewNRGBA(image.Rectangle{})
	}
	cols := min(len(frames), MaxColumns)
	rows := (len(frames) + cols - 1) / cols
	cellW := thumb + Padding
	cellH := thumb + CaptionHeight + Padding
	dst := image.NewNRGBA(image.Rect(0, 0, cols*cellW+Padding, rows*cellH+Padding))
	draw.Draw(dst, dst.Rect, &image.Uniform{Background}, image.Point{}, draw.Src)

	checks := checkerboard{size: max(thumb/16, 2)}
	for i, f := range frames {
		cell := image.Rect(0, 0, thumb, thumb).Add(image.Point{
			X: Padding + (i%cols)*cellW,
			Y: Padding + (i/cols)*cellH,
		})
		fit := text.KeepAspectRatio(cell, f.Bounds())
		draw.Draw(dst, fit, checks, fit.Min, draw.Src)
		xdraw.BiLinear.Scale(dst, fit, f, f.Bounds(), draw.Over, nil)

		if i < len(captions) {
			caption := image.Rect(cell.Min.X, cell.Max.Y, cell.Max.X, cell.Max.Y+CaptionHeight)
			text.Draw(dst.SubImage(caption).(*image.NRGBA), captions[i], CaptionColor, basicfont.Face7x13, 0.5, 0.5, false)
		}
	}
	return dst
}

// checkerboard is an unbounded two-tone checkerboard image.
type checkerboard struct {
	size int
}

func (c checkerboard) ColorModel() color.Model { return color.NRGBAModel }

func (c checkerboard) Bounds() image.Rectangle {
	return image.Rect(-1e9, -1e9, 1e9, 1e9)
}

func (c checkerboard) At(x, y int) color.Color {
	if (floorDiv(x, c.size)+floorDiv(y, c.size))%2 == 0 {
		return checkLight
	}
	return checkDark
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
