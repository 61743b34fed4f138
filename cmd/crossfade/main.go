// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The crossfade command builds a looping cross-fade animation from image
// files, or describes an existing WebP file.
//
// Usage:
//
//	crossfade [options] image1 image2 [images...]
//	crossfade -inspect file.webp
//
// Images are centered on a shared transparent canvas and written as an
// infinitely looping animated WebP. With -preview, a PNG contact sheet of
// the centered images is written instead.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kortschak/xfade/internal/decode"
	"github.com/kortschak/xfade/internal/pipeline"
	"github.com/kortschak/xfade/internal/preview"
	"github.com/kortschak/xfade/internal/slogext"
	"github.com/kortschak/xfade/internal/version"
	"github.com/kortschak/xfade/internal/webp"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	def := pipeline.DefaultParams()
	delay := flag.Duration("delay", def.Delay, "display time for each image")
	quality := flag.Int("quality", def.Quality, "encoding quality (100 is lossless)")
	transitions := flag.Int("transitions", def.Transitions, "number of transition frames between images")
	out := flag.String("o", pipeline.Name, "output file path")
	formats := flag.String("formats", "", "comma separated list of accepted image formats (default png,jpeg)")
	maxPixels := flag.Int("max_pixels", 0, "maximum number of pixels in an input image (0 is no limit)")
	sheet := flag.String("preview", "", "write a PNG preview sheet to this path instead of an animation")
	inspect := flag.Bool("inspect", false, "describe the WebP file given as the only argument")
	logging := flag.String("log", "warn", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:

  %[1]s [options] image1 image2 [images...]
  %[1]s -inspect file.webp

`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: slogext.NewAtomicBool(*lines),
	})})
	ctx := context.Background()

	if *inspect {
		if flag.NArg() != 1 {
			flag.Usage()
			return invocationError
		}
		err = describe(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	if flag.NArg() == 0 {
		flag.Usage()
		return invocationError
	}
	dec := &decode.Decoder{MaxPixels: *maxPixels}
	if *formats != "" {
		for _, s := range strings.Split(*formats, ",") {
			f, err := decode.ParseFormat(strings.TrimSpace(s))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return invocationError
			}
			dec.Formats = append(dec.Formats, f)
		}
	}

	imgs, err := decodeFiles(ctx, dec, flag.Args(), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}

	if *sheet != "" {
		err = writePreview(*sheet, imgs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	params := pipeline.Params{Delay: *delay, Quality: *quality, Transitions: *transitions}
	res, err := pipeline.Run(ctx, pipeline.Request{Images: imgs, Params: params}, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		var perr *pipeline.ParamError
		if errors.As(err, &perr) || errors.Is(err, pipeline.ErrTooFewImages) {
			return invocationError
		}
		return internalError
	}
	err = os.WriteFile(*out, res.Data, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	log.LogAttrs(ctx, slog.LevelInfo, "wrote animation",
		slog.String("path", *out),
		slog.Int("frames", res.Frames),
		slog.Any("canvas", res.Canvas),
		slog.Duration("frame_duration", res.FrameDuration),
	)
	return success
}

// decodeFiles decodes the named image files. All failures are reported.
func decodeFiles(ctx context.Context, dec *decode.Decoder, paths []string, log *slog.Logger) ([]image.Image, error) {
	var (
		imgs = make([]image.Image, 0, len(paths))
		errs []error
	)
	for _, path := range paths {
		img, err := decodeFile(dec, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		log.LogAttrs(ctx, slog.LevelDebug, "decoded image",
			slog.String("path", path),
			slog.Any("size", img.Bounds().Size()),
		)
		imgs = append(imgs, img)
	}
	return imgs, errors.Join(errs...)
}

func decodeFile(dec *decode.Decoder, path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// writePreview writes a contact sheet of the centered images to path.
func writePreview(path string, imgs []image.Image) error {
	canvas, err := pipeline.Preview(imgs)
	if err != nil {
		return err
	}
	frames := make([]image.Image, len(canvas))
	for i, f := range canvas {
		frames[i] = f
	}
	var buf bytes.Buffer
	err = png.Encode(&buf, preview.Sheet(frames, nil, preview.DefaultThumb))
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// describe writes a JSON description of the WebP file at path to stdout.
func describe(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := webp.Inspect(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	b, err := json.MarshalIndent(struct {
		*webp.Info
		Duration time.Duration `json:"total_duration"`
	}{
		Info:     info,
		Duration: info.Duration(),
	}, "", "\t")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", b)
	return nil
}
