// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package decode provides decoding of uploaded raster images into a
// canonical non-premultiplied RGBA representation.
package decode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"slices"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Format is an image encoding format.
type Format string

const (
	Unknown Format = ""
	PNG     Format = "png"
	JPEG    Format = "jpeg"
	GIF     Format = "gif"
	WebP    Format = "webp"
	BMP     Format = "bmp"
	TIFF    Format = "tiff"
)

// DefaultFormats are the formats accepted by a zero Decoder.
var DefaultFormats = []Format{PNG, JPEG}

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image too large")
)

type format struct {
	magic  []string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var formats = map[Format]format{
	PNG:  {magic: []string{"\x89PNG\r\n\x1a\n"}, decode: png.Decode, config: png.DecodeConfig},
	JPEG: {magic: []string{"\xff\xd8"}, decode: jpeg.Decode, config: jpeg.DecodeConfig},
	GIF:  {magic: []string{"GIF8?a"}, decode: gif.Decode, config: gif.DecodeConfig},
	WebP: {magic: []string{"RIFF????WEBPVP8"}, decode: webp.Decode, config: webp.DecodeConfig},
	BMP:  {magic: []string{"BM"}, decode: bmp.Decode, config: bmp.DecodeConfig},
	TIFF: {magic: []string{"II*\x00", "MM\x00*"}, decode: tiff.Decode, config: tiff.DecodeConfig},
}

// sniffOrder is the order formats are tested in by Sniff. Longer magic
// strings come first.
var sniffOrder = []Format{PNG, WebP, GIF, TIFF, JPEG, BMP}

// ParseFormat returns the Format named by s. The name "jpg" is accepted
// as an alias for JPEG.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(s)
	if s == "jpg" {
		s = string(JPEG)
	}
	f := Format(s)
	if _, ok := formats[f]; !ok {
		return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// Sniff returns the format of the data held by r, or Unknown if it
// is not recognized. No data is consumed from r.
func Sniff(r ReadPeeker) Format {
	for _, f := range sniffOrder {
		for _, m := range formats[f].magic {
			if hasMagic(m, r) {
				return f
			}
		}
	}
	return Unknown
}

// hasMagic returns whether r starts with the provided magic bytes.
// A '?' in magic matches any byte.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// Decoder decodes images in a set of allowed formats.
type Decoder struct {
	// Formats is the set of formats that will be
	// decoded. If Formats is empty, DefaultFormats
	// is used.
	Formats []Format

	// MaxPixels is the largest number of pixels
	// in an image that will be decoded. It is
	// checked before the image data is decoded.
	// Zero is no limit.
	MaxPixels int
}

// Allows returns whether the decoder will decode the format f.
func (d *Decoder) Allows(f Format) bool {
	allowed := d.Formats
	if len(allowed) == 0 {
		allowed = DefaultFormats
	}
	return slices.Contains(allowed, f)
}

// DecodeConfig returns the dimensions and format of the image read from r
// without decoding its pixel data. The MaxPixels limit is applied.
func (d *Decoder) DecodeConfig(r io.Reader) (image.Config, Format, error) {
	rp := AsReadPeeker(r)
	f, codec, err := d.codec(rp)
	if err != nil {
		return image.Config{}, f, err
	}
	cfg, err := codec.config(rp)
	if err != nil {
		return image.Config{}, f, fmt.Errorf("%s: %w", f, err)
	}
	return cfg, f, d.checkSize(f, cfg)
}

// Decode decodes the image read from r, returning it as an NRGBA image
// with its origin at (0, 0) along with its format. Multi-frame GIF
// images are decoded from their first frame.
func (d *Decoder) Decode(r io.Reader) (*image.NRGBA, Format, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, Unknown, err
	}
	f, codec, err := d.codec(bufio.NewReader(bytes.NewReader(b)))
	if err != nil {
		return nil, f, err
	}
	if d.MaxPixels > 0 {
		cfg, err := codec.config(bytes.NewReader(b))
		if err != nil {
			return nil, f, fmt.Errorf("%s: %w", f, err)
		}
		err = d.checkSize(f, cfg)
		if err != nil {
			return nil, f, err
		}
	}
	img, err := codec.decode(bytes.NewReader(b))
	if err != nil {
		return nil, f, fmt.Errorf("%s: %w", f, err)
	}
	return NRGBA(img), f, nil
}

// codec returns the sniffed format of r and its codec if the format is
// allowed.
func (d *Decoder) codec(r ReadPeeker) (Format, format, error) {
	f := Sniff(r)
	if f == Unknown {
		return Unknown, format{}, ErrUnsupportedFormat
	}
	if !d.Allows(f) {
		return f, format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return f, formats[f], nil
}

func (d *Decoder) checkSize(f Format, cfg image.Config) error {
	if d.MaxPixels > 0 && cfg.Width*cfg.Height > d.MaxPixels {
		return fmt.Errorf("%s: %w: %dx%d", f, ErrTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// NRGBA returns img as an NRGBA image with its origin at (0, 0). If img
// is already in that form it is returned unaltered.
func NRGBA(img image.Image) *image.NRGBA {
	if dst, ok := img.(*image.NRGBA); ok && dst.Rect.Min == (image.Point{}) {
		return dst
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rectangle{Max: b.Size()})
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}
