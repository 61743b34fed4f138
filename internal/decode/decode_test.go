// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 0xff, A: 0xff}
			if (x+y)%2 == 0 {
				c = color.NRGBA{B: 0xff, A: 0xff}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encode(t *testing.T, f Format, img image.Image) []byte {
	t.Helper()
	var (
		buf bytes.Buffer
		err error
	)
	switch f {
	case PNG:
		err = png.Encode(&buf, img)
	case JPEG:
		err = jpeg.Encode(&buf, img, nil)
	case GIF:
		pal := image.NewPaletted(img.Bounds(), color.Palette{
			color.NRGBA{R: 0xff, A: 0xff},
			color.NRGBA{B: 0xff, A: 0xff},
		})
		draw.Draw(pal, pal.Rect, img, img.Bounds().Min, draw.Src)
		err = gif.Encode(&buf, pal, nil)
	case BMP:
		err = bmp.Encode(&buf, img)
	case TIFF:
		err = tiff.Encode(&buf, img, nil)
	default:
		t.Fatalf("no encoder for %q", f)
	}
	if err != nil {
		t.Fatalf("failed to encode %s: %v", f, err)
	}
	return buf.Bytes()
}

var sniffTests = []struct {
	name string
	data string
	want Format
}{
	{name: "empty", data: "", want: Unknown},
	{name: "png", data: "\x89PNG\r\n\x1a\n\x00\x00", want: PNG},
	{name: "jpeg", data: "\xff\xd8\xff\xe0", want: JPEG},
	{name: "gif87a", data: "GIF87a\x01\x00", want: GIF},
	{name: "gif89a", data: "GIF89a\x01\x00", want: GIF},
	{name: "webp_lossy", data: "RIFF\x24\x00\x00\x00WEBPVP8 ", want: WebP},
	{name: "webp_lossless", data: "RIFF\x24\x00\x00\x00WEBPVP8L", want: WebP},
	{name: "riff_wave", data: "RIFF\x24\x00\x00\x00WAVEfmt ", want: Unknown},
	{name: "bmp", data: "BM\x00\x00", want: BMP},
	{name: "tiff_le", data: "II*\x00\x08\x00", want: TIFF},
	{name: "tiff_be", data: "MM\x00*\x00\x08", want: TIFF},
	{name: "text", data: "hello, world", want: Unknown},
}

func TestSniff(t *testing.T) {
	for _, test := range sniffTests {
		t.Run(test.name, func(t *testing.T) {
			r := AsReadPeeker(strings.NewReader(test.data))
			got := Sniff(r)
			if got != test.want {
				t.Errorf("unexpected format: got:%q want:%q", got, test.want)
			}
			rest, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("unexpected error reading: %v", err)
			}
			if string(rest) != test.data {
				t.Error("sniff consumed data")
			}
		})
	}
}

func TestDecode(t *testing.T) {
	want := checker(5, 3)
	for _, f := range []Format{PNG, GIF, BMP, TIFF} {
		t.Run(string(f), func(t *testing.T) {
			d := Decoder{Formats: []Format{f}}
			got, gotFormat, err := d.Decode(bytes.NewReader(encode(t, f, want)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotFormat != f {
				t.Errorf("unexpected format: got:%q want:%q", gotFormat, f)
			}
			if got.Rect != want.Rect {
				t.Errorf("unexpected bounds: got:%v want:%v", got.Rect, want.Rect)
			}
			if !cmp.Equal(got.Pix, want.Pix) {
				t.Errorf("unexpected pixels:\n--- want:\n+++ got:\n%s", cmp.Diff(want.Pix, got.Pix))
			}
		})
	}
}

func TestDecodeJPEG(t *testing.T) {
	var d Decoder
	got, f, err := d.Decode(bytes.NewReader(encode(t, JPEG, checker(16, 8))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != JPEG {
		t.Errorf("unexpected format: got:%q want:%q", f, JPEG)
	}
	if want := image.Rect(0, 0, 16, 8); got.Rect != want {
		t.Errorf("unexpected bounds: got:%v want:%v", got.Rect, want)
	}
	for i := 3; i < len(got.Pix); i += 4 {
		if got.Pix[i] != 0xff {
			t.Fatalf("unexpected transparency at %d: %#x", i/4, got.Pix[i])
		}
	}
}

func TestDecodeTransparency(t *testing.T) {
	want := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	want.SetNRGBA(0, 0, color.NRGBA{R: 0xff, G: 0x80, A: 0x80})
	var d Decoder
	got, _, err := d.Decode(bytes.NewReader(encode(t, PNG, want)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cmp.Equal(got.Pix, want.Pix) {
		t.Errorf("unexpected pixels:\n--- want:\n+++ got:\n%s", cmp.Diff(want.Pix, got.Pix))
	}
}

var decodeErrorTests = []struct {
	name    string
	formats []Format
	max     int
	data    func(*testing.T) []byte
	want    error
}{
	{
		name: "unknown",
		data: func(*testing.T) []byte { return []byte("not an image") },
		want: ErrUnsupportedFormat,
	},
	{
		name: "disallowed",
		data: func(t *testing.T) []byte { return encode(t, GIF, checker(2, 2)) },
		want: ErrUnsupportedFormat,
	},
	{
		name: "too_large",
		max:  15,
		data: func(t *testing.T) []byte { return encode(t, PNG, checker(4, 4)) },
		want: ErrTooLarge,
	},
	{
		name: "truncated",
		data: func(t *testing.T) []byte { return encode(t, PNG, checker(4, 4))[:20] },
		want: io.ErrUnexpectedEOF,
	},
}

func TestDecodeErrors(t *testing.T) {
	for _, test := range decodeErrorTests {
		t.Run(test.name, func(t *testing.T) {
			d := Decoder{Formats: test.formats, MaxPixels: test.max}
			_, _, err := d.Decode(bytes.NewReader(test.data(t)))
			if !errors.Is(err, test.want) {
				t.Errorf("unexpected error: got:%v want:%v", err, test.want)
			}
		})
	}
}

func TestDecodeConfig(t *testing.T) {
	for _, f := range []Format{PNG, JPEG, GIF, BMP, TIFF} {
		t.Run(string(f), func(t *testing.T) {
			d := Decoder{Formats: []Format{f}, MaxPixels: 40}
			got, gotFormat, err := d.DecodeConfig(bytes.NewReader(encode(t, f, checker(8, 5))))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotFormat != f {
				t.Errorf("unexpected format: got:%q want:%q", gotFormat, f)
			}
			if got.Width != 8 || got.Height != 5 {
				t.Errorf("unexpected size: got:%dx%d want:8x5", got.Width, got.Height)
			}
		})
	}

	// A large image is rejected from its header alone.
	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4000, 4000)))
	if err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	d := Decoder{MaxPixels: 1 << 20}
	_, _, err = d.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("unexpected error for large image: got:%v want:%v", err, ErrTooLarge)
	}

	for _, test := range decodeErrorTests {
		t.Run(test.name, func(t *testing.T) {
			d := Decoder{Formats: test.formats, MaxPixels: test.max}
			_, _, err := d.DecodeConfig(bytes.NewReader(test.data(t)))
			if !errors.Is(err, test.want) {
				t.Errorf("unexpected error: got:%v want:%v", err, test.want)
			}
		})
	}
}

func TestNRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(2, 3, 5, 5))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	got := NRGBA(src)
	if want := image.Rect(0, 0, 3, 2); got.Rect != want {
		t.Errorf("unexpected bounds: got:%v want:%v", got.Rect, want)
	}
	if !cmp.Equal(got.Pix, src.Pix) {
		t.Errorf("unexpected pixels:\n--- want:\n+++ got:\n%s", cmp.Diff(src.Pix, got.Pix))
	}

	same := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	if NRGBA(same) != same {
		t.Error("expected origin NRGBA image to be returned unaltered")
	}
}

var parseFormatTests = []struct {
	in      string
	want    Format
	wantErr bool
}{
	{in: "png", want: PNG},
	{in: "JPEG", want: JPEG},
	{in: "jpg", want: JPEG},
	{in: "webp", want: WebP},
	{in: "heic", want: Unknown, wantErr: true},
}

func TestParseFormat(t *testing.T) {
	for _, test := range parseFormatTests {
		got, err := ParseFormat(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("unexpected error for %q: %v", test.in, err)
		}
		if got != test.want {
			t.Errorf("unexpected format for %q: got:%q want:%q", test.in, got, test.want)
		}
	}
}
