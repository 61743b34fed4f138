// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package text provides functions for rendering [basicfont.Face] fonts to
// an image.
package text

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/bbrks/wrap/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Size returns the size, in font rows and columns, of the bounding rectangle.
func Size(bound image.Rectangle, fnt *basicfont.Face) (rows, cols int) {
	rows = bound.Dy() / fnt.Height
	cols = bound.Dx() / fnt.Advance
	return rows, cols
}

// KeepAspectRatio returns the largest rectangle centered within dst that
// has the same aspect ratio as src. It can be used in a call to a
// draw.Scaler to maintain the src aspect ratio in the dst image.
//
//	draw.BiLinear.Scale(dst, KeepAspectRatio(dst.Bounds(), src.Bounds()), src, src.Bounds(), op, opts)
func KeepAspectRatio(dst, src image.Rectangle) image.Rectangle {
	dx, dy := src.Dx(), src.Dy()
	if dx <= 0 || dy <= 0 {
		return image.Rectangle{Min: dst.Min, Max: dst.Min}
	}
	w, h := dst.Dx(), dst.Dy()
	switch {
	case dx*h < dy*w:
		dx, dy = dx*h/dy, h
	case dx*h > dy*w:
		dx, dy = w, dy*w/dx
	default:
		return dst
	}
	min := dst.Min.Add(image.Point{X: (w - dx) / 2, Y: (h - dy) / 2})
	return image.Rectangle{Min: min, Max: min.Add(image.Point{X: dx, Y: dy})}
}

// Lines breaks text into at most rows lines of at most cols runes. If words
// is true, text spanning lines will be broken at word boundaries where
// possible. Text that does not fit is truncated with an ellipsis.
func Lines(text string, rows, cols int, words bool) []string {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	var lines []string
	if words {
		wrapper := wrap.NewWrapper()
		wrapper.StripTrailingNewline = true
		wrapper.CutLongWords = true
		lines = strings.Split(wrapper.Wrap(text, cols), "\n")
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
	} else {
		t := []rune(text)
		for len(t) != 0 {
			n := min(cols, len(t))
			lines = append(lines, string(t[:n]))
			t = t[n:]
		}
	}

	const ellipsis = "..."
	if len(lines) > rows {
		lines = lines[:rows]
		last := []rune(lines[rows-1])
		if n := cols - len(ellipsis); len(last) > n {
			last = last[:max(n, 0)]
		}
		lines[rows-1] = string(last) + ellipsis
	}
	return lines
}

// Draw draws the provided text to the destination in the provided color.
// Relative position of the text is specified by dx and dy which must be
// in the range [0, 1]. If words is true, text spanning lines will be broken
// at word boundaries where possible.
func Draw(dst draw.Image, text string, col color.Color, fnt *basicfont.Face, dx, dy float64, words bool) {
	rows, cols := Size(dst.Bounds(), fnt)
	lines := Lines(text, rows, cols, words)
	if len(lines) == 0 {
		return
	}

	if dx != 0 || dy != 0 {
		mp := newBounds(dst)
		min := dst.Bounds().Min
		for i, l := range lines {
			mp.drawString(l, fnt, fixed.P(min.X, min.Y+fnt.Ascent+fnt.Height*i))
		}
		dst = mp.offset(dst, dx, dy)
	}
	fg := &image.Uniform{col}
	min := dst.Bounds().Min
	for i, l := range lines {
		drawer := font.Drawer{
			Dst:  dst,
			Src:  fg,
			Face: fnt,
			Dot:  fixed.P(min.X, min.Y+fnt.Ascent+fnt.Height*i),
		}
		drawer.DrawString(l)
	}
}

// Outlined is an image that renders a single pixel width outline
// around a drawing.
type Outlined[T draw.Image] struct {
	Text       T
	Background T

	OutlineColor color.Color
}

func (o Outlined[T]) Set(x, y int, c color.Color) {
	o.Text.Set(x, y, c)
	for i := -1; i <= 1; i++ {
		o.Background.Set(x+i, y, o.OutlineColor)
	}
	for i := -1; i <= 1; i += 2 {
		o.Background.Set(x, y+i, o.OutlineColor)
	}
}

// At returns the text color composited over the background.
func (o Outlined[T]) At(x, y int) color.Color {
	// m is the maximum color value returned by image.Color.RGBA.
	const m = 1<<16 - 1

	rT, gT, bT, aT := o.Text.At(x, y).RGBA()
	rO, gO, bO, aO := o.Background.At(x, y).RGBA()
	a := m - aT
	return color.RGBA64{
		R: uint16(rO*a/m + rT),
		G: uint16(gO*a/m + gT),
		B: uint16(bO*a/m + bT),
		A: uint16(aO*a/m + aT),
	}
}

func (o Outlined[T]) Bounds() image.Rectangle {
	return o.Text.Bounds().Intersect(o.Background.Bounds())
}

func (o Outlined[T]) ColorModel() color.Model {
	return o.Text.ColorModel()
}

// Shrink reduces the bounds of an Image by a margin.
type Shrink struct {
	draw.Image

	// Margin is the margin size in pixels.
	Margin int
}

func (s Shrink) Bounds() image.Rectangle {
	return s.Image.Bounds().Inset(s.Margin)
}

// bounds is the extent of rendered glyphs.
type bounds image.Rectangle

func newBounds(dst draw.Image) *bounds {
	b := bounds(image.Rectangle{Min: dst.Bounds().Max, Max: dst.Bounds().Min})
	return &b
}

func (b *bounds) drawString(s string, fnt font.Face, dot fixed.Point26_6) {
	prevC := rune(-1)
	for _, c := range s {
		if prevC >= 0 {
			dot.X += fnt.Kern(prevC, c)
		}
		dr, _, _, advance, ok := fnt.Glyph(dot, c)
		if !ok {
			continue
		}
		b.set(dr.Min.X, dr.Min.Y)
		b.set(dr.Max.X, dr.Max.Y)
		dot.X += advance
		prevC = c
	}
}

func (b *bounds) set(x, y int) {
	b.Min.X = min(b.Min.X, x)
	b.Min.Y = min(b.Min.Y, y)
	b.Max.X = max(b.Max.X, x)
	b.Max.Y = max(b.Max.Y, y)
}

// offset returns img translated so that the glyph extent is positioned
// at the relative position dx, dy within the free space of img.
func (b *bounds) offset(img draw.Image, dx, dy float64) draw.Image {
	free := img.Bounds().Max.Sub(b.Max)
	return offset{Image: img, offset: image.Point{X: int(float64(free.X) * dx), Y: int(float64(free.Y) * dy)}}
}

type offset struct {
	draw.Image
	offset image.Point
}

func (o offset) Set(x, y int, c color.Color) {
	o.Image.Set(x+o.offset.X, y+o.offset.Y, c)
}

func (o offset) At(x, y int) color.Color {
	return o.Image.At(x+o.offset.X, y+o.offset.Y)
}
