// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs the normalize, cross-fade and encode stages that
// turn a set of images into an animated WebP.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kortschak/xfade/internal/animation"
	"github.com/kortschak/xfade/internal/webp"
)

// Name is the file name of delivered animations.
const Name = "animation" + webp.Extension

var (
	// ErrTooFewImages is returned by Run when fewer than two
	// images are provided.
	ErrTooFewImages = errors.New("at least 2 images are required")

	// ErrNoImages is returned by Preview when no images are
	// provided.
	ErrNoImages = errors.New("no images")
)

// Request is a single animation request. A Request and the images it
// holds must not be mutated while Run is using it.
type Request struct {
	// Images are the decoded input images in
	// display order.
	Images []image.Image

	Params Params
}

// Result is a completed animation.
type Result struct {
	// Data is the encoded animation.
	Data []byte
	// Name and MIMEType are the file name and
	// media type for delivery of Data.
	Name     string
	MIMEType string

	// Frames is the number of frames in the
	// animation, including transitions.
	Frames int
	// Canvas is the size of the animation.
	Canvas image.Point
	// FrameDuration is the display duration
	// of each frame.
	FrameDuration time.Duration
}

// Run builds an animation from the request's images. The images are
// centered on a shared transparent canvas, transition frames are added
// between each image and the next, wrapping from the last image back to
// the first, and the result is encoded as an infinitely looping WebP.
//
// Run returns ErrTooFewImages without doing any work if fewer than two
// images are provided, and a *ParamError if the parameters are invalid.
// Once started, the run is not interrupted by cancellation of ctx.
func Run(ctx context.Context, req Request, log *slog.Logger) (*Result, error) {
	if len(req.Images) < 2 {
		return nil, ErrTooFewImages
	}
	err := req.Params.Validate()
	if err != nil {
		return nil, err
	}
	err = ctx.Err()
	if err != nil {
		return nil, err
	}
	log = log.With(slog.String("component", "pipeline"))

	start := time.Now()
	canvas := animation.Normalize(req.Images)
	log.LogAttrs(ctx, slog.LevelDebug, "normalized images",
		slog.Int("images", len(canvas)),
		slog.Any("canvas", canvas[0].Rect.Size()),
		slog.Int64("memory", EstimateMemory(len(canvas), canvas[0].Rect.Size(), req.Params.Transitions)),
	)

	seq := &animation.Sequence{
		Frame:    animation.CrossFade(canvas, req.Params.Transitions),
		Duration: req.Params.FrameDuration(),
	}
	err = seq.Check()
	if err != nil {
		return nil, fmt.Errorf("invalid frame sequence: %w", err)
	}
	log.LogAttrs(ctx, slog.LevelDebug, "synthesized frames",
		slog.Int("frames", seq.Len()),
		slog.Duration("frame_duration", seq.Duration),
	)

	var buf bytes.Buffer
	enc := req.Params.Encoder()
	err = enc.Encode(&buf, seq)
	if err != nil {
		return nil, err
	}
	log.LogAttrs(ctx, slog.LevelInfo, "encoded animation",
		slog.Int("frames", seq.Len()),
		slog.Bool("lossless", enc.Lossless),
		slog.Int("quality", enc.Quality),
		slog.Int("bytes", buf.Len()),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		Data:          buf.Bytes(),
		Name:          Name,
		MIMEType:      webp.MIMEType,
		Frames:        seq.Len(),
		Canvas:        seq.Bounds().Size(),
		FrameDuration: seq.Duration,
	}, nil
}

// Preview returns the images centered on their shared canvas.
func Preview(imgs []image.Image) ([]*image.NRGBA, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}
	return animation.Normalize(imgs), nil
}

// EstimateMemory returns an estimate of the number of bytes of frame
// data held during a run over n images with the given canvas size and
// number of transition frames.
func EstimateMemory(n int, canvas image.Point, transitions int) int64 {
	return int64(n) * int64(1+max(transitions, 0)) * int64(canvas.X) * int64(canvas.Y) * 4
}
