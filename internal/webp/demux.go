// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	xwebp "golang.org/x/image/webp"
)

// Info describes the structure of a WebP file.
type Info struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Animated indicates that the file holds an animation.
	// Still images are described as a single frame.
	Animated bool `json:"animated"`
	// Alpha indicates that the file declares alpha use.
	Alpha bool `json:"alpha"`

	LoopCount  int         `json:"loop_count"`
	Background color.NRGBA `json:"background"`

	Frames []Frame `json:"frames"`
}

// Duration returns the total display duration of one loop of the
// animation.
func (i *Info) Duration() time.Duration {
	var d time.Duration
	for _, f := range i.Frames {
		d += f.Duration
	}
	return d
}

// Frame describes a single frame of a WebP file.
type Frame struct {
	// Rect is the region of the canvas covered by the frame.
	Rect image.Rectangle `json:"rect"`

	Duration time.Duration `json:"duration"`

	// Blend indicates that the frame is alpha-blended over the
	// canvas rather than replacing it.
	Blend bool `json:"blend"`
	// Dispose indicates that the frame's region is cleared to the
	// background color before the next frame is rendered.
	Dispose bool `json:"dispose"`

	// Lossless indicates the frame is a VP8L bitstream.
	Lossless bool `json:"lossless"`
	// Alpha indicates the frame carries alpha.
	Alpha bool `json:"alpha"`

	// Size is the size of the compressed frame data.
	Size int `json:"size"`

	chunks []chunk
}

// Decode returns the image held by the frame. The returned image has
// the frame's size with its origin at (0, 0).
func (f *Frame) Decode() (image.Image, error) {
	var (
		buf    bytes.Buffer
		chunks []chunk
	)
	if f.Alpha && !f.Lossless {
		vp8x := make([]byte, vp8xSize)
		vp8x[0] = flagAlpha
		putUint24(vp8x[4:], uint32(f.Rect.Dx()-1))
		putUint24(vp8x[7:], uint32(f.Rect.Dy()-1))
		chunks = append(chunks, chunk{fourCC: fccVP8X, data: vp8x})
	}
	chunks = append(chunks, f.chunks...)
	err := writeFile(&buf, chunks)
	if err != nil {
		return nil, err
	}
	return xwebp.Decode(&buf)
}

// Inspect returns a description of the WebP file read from r.
func Inspect(r io.Reader) (*Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	chunks, err := readFile(b)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, FormatError("no chunks")
	}

	if chunks[0].fourCC != fccVP8X {
		// Simple file format.
		f, err := newFrame(chunks[:1])
		if err != nil {
			return nil, err
		}
		return &Info{
			Width:  f.Rect.Dx(),
			Height: f.Rect.Dy(),
			Alpha:  f.Alpha,
			Frames: []Frame{f},
		}, nil
	}

	vp8x := chunks[0].data
	if len(vp8x) < vp8xSize {
		return nil, FormatError("short VP8X chunk")
	}
	info := &Info{
		Width:    int(uint24(vp8x[4:])) + 1,
		Height:   int(uint24(vp8x[7:])) + 1,
		Animated: vp8x[0]&flagAnimation != 0,
		Alpha:    vp8x[0]&flagAlpha != 0,
	}
	chunks = chunks[1:]

	if !info.Animated {
		var frame []chunk
		for _, c := range chunks {
			switch c.fourCC {
			case fccALPH, fccVP8, fccVP8L:
				frame = append(frame, c)
			}
		}
		f, err := newFrame(frame)
		if err != nil {
			return nil, err
		}
		info.Frames = []Frame{f}
		return info, nil
	}

	var sawANIM bool
	for _, c := range chunks {
		switch c.fourCC {
		case fccANIM:
			if len(c.data) < animSize {
				return nil, FormatError("short ANIM chunk")
			}
			sawANIM = true
			info.Background = color.NRGBA{B: c.data[0], G: c.data[1], R: c.data[2], A: c.data[3]}
			info.LoopCount = int(binary.LittleEndian.Uint16(c.data[4:]))
		case fccANMF:
			if !sawANIM {
				return nil, FormatError("ANMF chunk before ANIM chunk")
			}
			f, err := readANMF(c.data)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", len(info.Frames), err)
			}
			if !f.Rect.In(image.Rect(0, 0, info.Width, info.Height)) {
				return nil, FormatError(fmt.Sprintf("frame %d %v outside canvas %dx%d", len(info.Frames), f.Rect, info.Width, info.Height))
			}
			info.Frames = append(info.Frames, f)
		}
	}
	if len(info.Frames) == 0 {
		return nil, FormatError("animation has no frames")
	}
	return info, nil
}

// DecodeFrames returns the decoded frames of the WebP file read from r and
// its description. Frame images are returned as stored and are not
// composited onto the canvas.
func DecodeFrames(r io.Reader) ([]image.Image, *Info, error) {
	info, err := Inspect(r)
	if err != nil {
		return nil, nil, err
	}
	frames := make([]image.Image, len(info.Frames))
	for i := range info.Frames {
		frames[i], err = info.Frames[i].Decode()
		if err != nil {
			return nil, info, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return frames, info, nil
}

func readANMF(b []byte) (Frame, error) {
	if len(b) < anmfHeaderSize {
		return Frame{}, FormatError("short ANMF chunk")
	}
	chunks, err := readChunks(b[anmfHeaderSize:])
	if err != nil {
		return Frame{}, err
	}
	f, err := newFrame(chunks)
	if err != nil {
		return Frame{}, err
	}
	min := image.Point{X: 2 * int(uint24(b[0:])), Y: 2 * int(uint24(b[3:]))}
	size := image.Point{X: int(uint24(b[6:])) + 1, Y: int(uint24(b[9:])) + 1}
	f.Rect = image.Rectangle{Min: min, Max: min.Add(size)}
	f.Duration = time.Duration(uint24(b[12:])) * time.Millisecond
	f.Blend = b[15]&frameNoBlend == 0
	f.Dispose = b[15]&frameDispose != 0
	return f, nil
}

// newFrame returns a Frame holding the image data in chunks. The frame's
// rectangle is set from the bitstream header.
func newFrame(chunks []chunk) (Frame, error) {
	var f Frame
	for _, c := range chunks {
		switch c.fourCC {
		case fccALPH:
			f.Alpha = true
		case fccVP8:
			w, h, err := vp8Size(c.data)
			if err != nil {
				return Frame{}, err
			}
			f.Rect = image.Rect(0, 0, w, h)
		case fccVP8L:
			w, h, err := vp8lSize(c.data)
			if err != nil {
				return Frame{}, err
			}
			f.Rect = image.Rect(0, 0, w, h)
			f.Lossless = true
			f.Alpha = vp8lHasAlpha(c.data)
		default:
			continue
		}
		f.chunks = append(f.chunks, c)
		f.Size += c.size()
	}
	if f.Rect.Empty() {
		return Frame{}, FormatError("no image data")
	}
	return f, nil
}

func vp8Size(b []byte) (w, h int, err error) {
	// 3 byte frame tag, 3 byte start code and 2x16 bit dimensions.
	if len(b) < 10 || b[3] != 0x9d || b[4] != 0x01 || b[5] != 0x2a {
		return 0, 0, FormatError("invalid VP8 header")
	}
	w = int(binary.LittleEndian.Uint16(b[6:]) & 0x3fff)
	h = int(binary.LittleEndian.Uint16(b[8:]) & 0x3fff)
	return w, h, nil
}

func vp8lSize(b []byte) (w, h int, err error) {
	if len(b) < 5 || b[0] != 0x2f {
		return 0, 0, FormatError("invalid VP8L header")
	}
	v := binary.LittleEndian.Uint32(b[1:5])
	w = int(v&0x3fff) + 1
	h = int(v>>14&0x3fff) + 1
	return w, h, nil
}
