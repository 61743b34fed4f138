// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webp provides encoding and inspection of animated WebP images.
//
// Individual frames are compressed by libwebp as still images, either
// lossy (VP8 with an optional ALPH chunk) or lossless (VP8L), and are
// then assembled into the extended file format: a VP8X header, an ANIM
// chunk holding the loop count and background color and one ANMF chunk
// per frame.
//
// For details of the container, see:
//
// https://developers.google.com/speed/webp/docs/riff_container
package webp
