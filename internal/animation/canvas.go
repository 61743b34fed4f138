// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"

	"golang.org/x/image/draw"
)

// CanvasSize returns the size of the smallest canvas that can hold each
// of the provided images, the maximum width and maximum height over imgs.
func CanvasSize(imgs []image.Image) image.Point {
	var size image.Point
	for _, img := range imgs {
		size.X = max(size.X, img.Bounds().Dx())
		size.Y = max(size.Y, img.Bounds().Dy())
	}
	return size
}

// Offset returns the position of the top-left corner of an image of the
// given size centered on a canvas. Odd remainders are floored, so the
// extra pixel of padding falls on the right and bottom edges.
func Offset(size, canvas image.Point) image.Point {
	return canvas.Sub(size).Div(2)
}

// Normalize returns canvas frames for each of the provided images. Each
// frame has the size returned by CanvasSize and holds its source image
// pasted at the centering Offset. Pixels not covered by the source are
// fully transparent. Source alpha is retained and the source is never
// scaled. The input images are not altered.
func Normalize(imgs []image.Image) []*image.NRGBA {
	if len(imgs) == 0 {
		return nil
	}
	canvas := CanvasSize(imgs)
	frames := make([]*image.NRGBA, len(imgs))
	for i, img := range imgs {
		b := img.Bounds()
		dst := image.NewNRGBA(image.Rectangle{Max: canvas})
		at := Offset(b.Size(), canvas)
		if src, ok := img.(*image.NRGBA); ok {
			paste(dst, at, src)
		} else {
			draw.Copy(dst, at, img, b, draw.Src, nil)
		}
		frames[i] = dst
	}
	return frames
}

// paste copies src into dst at the offset at without passing samples
// through premultiplied color conversion, so partially transparent
// pixels keep their exact values.
func paste(dst *image.NRGBA, at image.Point, src *image.NRGBA) {
	b := src.Bounds()
	n := 4 * b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		s := src.PixOffset(b.Min.X, y)
		d := dst.PixOffset(at.X, at.Y+y-b.Min.Y)
		copy(dst.Pix[d:d+n], src.Pix[s:s+n])
	}
}
