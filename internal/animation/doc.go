// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides construction of cross-fade animation frame
// sequences from sets of still images.
//
// Images are first normalized onto a shared transparent canvas sized to
// hold the largest of them, and then interleaved with linearly blended
// transition frames that fade each keyframe into its successor, wrapping
// from the last keyframe back to the first.
package animation
