// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preview

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font/basicfont"

	"github.com/kortschak/xfade/internal/text"
)

var (
	ErrorBackground = color.NRGBA{R: 0xa0, G: 0x20, B: 0x20, A: 0xff}
	ErrorText       = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ErrorOutline    = color.NRGBA{A: 0xff}
)

// ErrorTile returns an image filling rect that shows the error message
// word wrapped and centered in outlined text.
func ErrorTile(err error, rect image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(rect)
	draw.Draw(dst, rect, &image.Uniform{ErrorBackground}, image.Point{}, draw.Src)
	if err == nil {
		return dst
	}
	fg := image.NewNRGBA(rect)
	canvas := text.Shrink{
		Image: text.Outlined[*image.NRGBA]{
			Text:         fg,
			Background:   dst,
			OutlineColor: ErrorOutline,
		},
		Margin: Padding,
	}
	text.Draw(canvas, err.Error(), ErrorText, basicfont.Face7x13, 0.5, 0.5, true)
	draw.Draw(dst, rect, fg, rect.Min, draw.Over)
	return dst
}
