// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"time"

	"github.com/kortschak/xfade/internal/webp"
)

// Parameter bounds.
const (
	MinDelay  = 100 * time.Millisecond
	MaxDelay  = 2000 * time.Millisecond
	DelayStep = 100 * time.Millisecond

	MinQuality = 1
	MaxQuality = 100

	MaxTransitions = 30
)

// Params are the user-selected animation parameters.
type Params struct {
	// Delay is the display time of each input
	// image including its following transition.
	Delay time.Duration

	// Quality is the compression quality. A
	// quality of MaxQuality selects lossless
	// compression.
	Quality int

	// Transitions is the number of frames
	// generated between consecutive images.
	Transitions int
}

// DefaultParams returns the default animation parameters.
func DefaultParams() Params {
	return Params{
		Delay:       500 * time.Millisecond,
		Quality:     80,
		Transitions: 0,
	}
}

// Validate returns a *ParamError if any parameter is outside its valid
// range.
func (p Params) Validate() error {
	switch {
	case p.Delay < MinDelay || p.Delay > MaxDelay:
		return &ParamError{Name: "delay", Value: p.Delay, Reason: fmt.Sprintf("must be between %v and %v", MinDelay, MaxDelay)}
	case p.Delay%DelayStep != 0:
		return &ParamError{Name: "delay", Value: p.Delay, Reason: fmt.Sprintf("must be a multiple of %v", DelayStep)}
	case p.Quality < MinQuality || p.Quality > MaxQuality:
		return &ParamError{Name: "quality", Value: p.Quality, Reason: fmt.Sprintf("must be between %d and %d", MinQuality, MaxQuality)}
	case p.Transitions < 0 || p.Transitions > MaxTransitions:
		return &ParamError{Name: "transitions", Value: p.Transitions, Reason: fmt.Sprintf("must be between 0 and %d", MaxTransitions)}
	}
	return nil
}

// Encoder returns the WebP encoder configured by the parameters.
func (p Params) Encoder() webp.Encoder {
	return webp.Encoder{
		Lossless: p.Quality == MaxQuality,
		Quality:  p.Quality,
	}
}

// FrameDuration returns the display duration of each frame of an
// animation made with the parameters.
func (p Params) FrameDuration() time.Duration {
	return webp.FrameDuration(p.Delay, p.Transitions)
}

// ParamError is an invalid parameter error.
type ParamError struct {
	Name   string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Name, e.Value, e.Reason)
}
