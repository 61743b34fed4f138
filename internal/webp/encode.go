// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	libwebp "github.com/chai2010/webp"

	"github.com/kortschak/xfade/internal/animation"
)

const (
	// MIMEType is the media type of WebP images.
	MIMEType = "image/webp"
	// Extension is the conventional WebP file name extension.
	Extension = ".webp"

	// MaxDimension is the largest frame width or height supported
	// by the VP8 and VP8L bitstreams.
	MaxDimension = 16383
)

var (
	ErrNoFrames = errors.New("webp: no frames to encode")
	ErrTooLarge = errors.New("webp: image too large")
)

// Encoder is an animated WebP encoder.
type Encoder struct {
	// Lossless specifies that frames are compressed
	// with the lossless VP8L bitstream.
	Lossless bool

	// Quality is the lossy compression quality in
	// the range [0, 100]. It is ignored when Lossless
	// is true.
	Quality int

	// Background is the canvas background color hint
	// stored in the ANIM chunk.
	Background color.NRGBA
}

// Encode writes the sequence to w as an animated WebP. Each frame is
// displayed for seq.Duration, truncated to millisecond resolution, and
// the animation is played according to seq.LoopCount where zero is an
// infinite loop. Frames are placed at the canvas origin, replace the
// previous frame without blending and are not disposed. The canvas size
// is taken from the first frame.
func (e Encoder) Encode(w io.Writer, seq *animation.Sequence) error {
	if seq.Len() == 0 {
		return ErrNoFrames
	}
	canvas := seq.Bounds().Size()
	if canvas.X <= 0 || canvas.Y <= 0 {
		return fmt.Errorf("webp: empty canvas: %v", seq.Bounds())
	}
	if canvas.X > MaxDimension || canvas.Y > MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %[4]dx%[4]d", ErrTooLarge, canvas.X, canvas.Y, MaxDimension)
	}

	duration := clamp(seq.Duration.Milliseconds(), 0, maxUint24)
	loop := clamp(int64(seq.LoopCount), 0, 1<<16-1)

	chunks := make([]chunk, 2, 2+seq.Len())
	var hasAlpha bool
	for i, f := range seq.Frame {
		data, alpha, err := e.encodeFrame(f)
		if err != nil {
			return fmt.Errorf("webp: frame %d: %w", i, err)
		}
		hasAlpha = hasAlpha || alpha
		chunks = append(chunks, anmf(f.Bounds().Size(), uint32(duration), data))
	}

	vp8x := make([]byte, vp8xSize)
	vp8x[0] = flagAnimation
	if hasAlpha {
		vp8x[0] |= flagAlpha
	}
	putUint24(vp8x[4:], uint32(canvas.X-1))
	putUint24(vp8x[7:], uint32(canvas.Y-1))
	chunks[0] = chunk{fourCC: fccVP8X, data: vp8x}

	anim := make([]byte, animSize)
	bg := e.Background
	copy(anim[:4], []byte{bg.B, bg.G, bg.R, bg.A})
	binary.LittleEndian.PutUint16(anim[4:], uint16(loop))
	chunks[1] = chunk{fourCC: fccANIM, data: anim}

	return writeFile(w, chunks)
}

// anmf returns an ANMF chunk for a frame of the given size placed at the
// canvas origin holding the provided frame data chunks.
func anmf(size image.Point, duration uint32, frame []chunk) chunk {
	data := make([]byte, anmfHeaderSize, anmfHeaderSize+chunksSize(frame))
	// X and Y offsets are zero.
	putUint24(data[6:], uint32(size.X-1))
	putUint24(data[9:], uint32(size.Y-1))
	putUint24(data[12:], duration)
	data[15] = frameNoBlend
	buf := bytes.NewBuffer(data)
	for _, c := range frame {
		// Writes to a bytes.Buffer do not fail.
		c.writeTo(buf)
	}
	return chunk{fourCC: fccANMF, data: buf.Bytes()}
}

// encodeFrame compresses img as a still WebP and returns the image data
// chunks, ALPH and VP8 or VP8L, suitable for inclusion in an ANMF chunk,
// and whether the frame carries alpha.
func (e Encoder) encodeFrame(img *image.NRGBA) (frame []chunk, alpha bool, err error) {
	var buf bytes.Buffer
	err = libwebp.Encode(&buf, straight(img), &libwebp.Options{
		Lossless: e.Lossless,
		Quality:  float32(e.Quality),
		Exact:    e.Lossless, // Lossy frames may alter RGB under zero alpha.
	})
	if err != nil {
		return nil, false, err
	}
	chunks, err := readFile(buf.Bytes())
	if err != nil {
		return nil, false, err
	}
	for _, c := range chunks {
		switch c.fourCC {
		case fccALPH:
			alpha = true
		case fccVP8:
		case fccVP8L:
			alpha = alpha || vp8lHasAlpha(c.data)
		default:
			// Drop the VP8X header and any metadata.
			continue
		}
		frame = append(frame, c)
	}
	if len(frame) == 0 {
		return nil, false, errors.New("no image data in encoded frame")
	}
	return frame, alpha, nil
}

// straight returns img's pixels in the RGBA image type accepted by the
// libwebp wrapper. The wrapper hands the pixel buffer directly to libwebp,
// which expects non-premultiplied samples, so the NRGBA buffer is shared
// rather than converted.
func straight(img *image.NRGBA) *image.RGBA {
	return &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
}

func clamp(v, lo, hi int64) int64 {
	return min(max(v, lo), hi)
}

// FrameDuration returns the duration of each frame in an animation
// that shows each keyframe for delay in total, shared equally with the
// n transition frames that follow it. The result has millisecond
// resolution and is never less than one millisecond.
func FrameDuration(delay time.Duration, n int) time.Duration {
	if n <= 0 {
		return delay
	}
	ms := delay.Milliseconds() / int64(n+1)
	return time.Duration(max(1, ms)) * time.Millisecond
}
