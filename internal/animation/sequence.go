// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// Sequence is an animation made from an ordered set of frames sharing
// the same bounds.
type Sequence struct {
	// The successive frames.
	Frame []*image.NRGBA

	// Duration is the display duration of each frame.
	Duration time.Duration

	// LoopCount controls the number of times an animation will be
	// played. A LoopCount of 0 means to loop forever.
	LoopCount int
}

// Bounds returns the bounds of the first frame of the sequence, or the
// zero rectangle if the sequence is empty.
func (s *Sequence) Bounds() image.Rectangle {
	if len(s.Frame) == 0 {
		return image.Rectangle{}
	}
	return s.Frame[0].Bounds()
}

// Len returns the number of frames in the sequence.
func (s *Sequence) Len() int {
	return len(s.Frame)
}

// Check returns an error if the sequence is empty or if the frames do not
// all share the same bounds.
func (s *Sequence) Check() error {
	if len(s.Frame) == 0 {
		return errors.New("empty sequence")
	}
	b := s.Frame[0].Bounds()
	for i, f := range s.Frame[1:] {
		if f.Bounds() != b {
			return fmt.Errorf("mismatched bounds at %d: %v != %v", i+1, f.Bounds(), b)
		}
	}
	if s.Duration < 0 {
		return fmt.Errorf("negative frame duration: %v", s.Duration)
	}
	if s.LoopCount < 0 {
		return fmt.Errorf("negative loop count: %d", s.LoopCount)
	}
	return nil
}
