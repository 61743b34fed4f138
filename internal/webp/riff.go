// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Chunk FourCCs, as per the RIFF container specification.
const (
	fccRIFF = "RIFF"
	fccWEBP = "WEBP"
	fccVP8X = "VP8X"
	fccANIM = "ANIM"
	fccANMF = "ANMF"
	fccALPH = "ALPH"
	fccVP8  = "VP8 "
	fccVP8L = "VP8L"
)

// Payload sizes of fixed size chunks and fixed headers.
const (
	chunkHeaderSize = 8
	vp8xSize        = 10
	animSize        = 6
	anmfHeaderSize  = 16
)

// VP8X feature flags.
const (
	flagAnimation = 1 << 1
	flagAlpha     = 1 << 4
)

// ANMF frame flags.
const (
	frameDispose = 1 << 0
	frameNoBlend = 1 << 1
)

// maxUint24 is the largest value that can be held by the 24-bit fields of
// the VP8X and ANMF chunks.
const maxUint24 = 1<<24 - 1

// FormatError reports that the input is not a valid WebP file.
type FormatError string

func (e FormatError) Error() string { return "webp: invalid format: " + string(e) }

// chunk is a RIFF chunk.
type chunk struct {
	fourCC string
	data   []byte
}

// size returns the number of bytes the chunk occupies in a file, including
// its header and any padding.
func (c chunk) size() int {
	return chunkHeaderSize + len(c.data) + len(c.data)&1
}

// writeTo writes the chunk to w, padding odd length payloads.
func (c chunk) writeTo(w io.Writer) error {
	var hdr [chunkHeaderSize]byte
	copy(hdr[:4], c.fourCC)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(c.data)))
	_, err := w.Write(hdr[:])
	if err != nil {
		return err
	}
	_, err = w.Write(c.data)
	if err != nil {
		return err
	}
	if len(c.data)&1 != 0 {
		_, err = w.Write([]byte{0})
	}
	return err
}

// chunksSize returns the total in-file size of the provided chunks.
func chunksSize(chunks []chunk) int {
	var n int
	for _, c := range chunks {
		n += c.size()
	}
	return n
}

// readChunks splits b into a sequence of RIFF chunks.
func readChunks(b []byte) ([]chunk, error) {
	var chunks []chunk
	for len(b) != 0 {
		if len(b) < chunkHeaderSize {
			return nil, FormatError("short chunk header")
		}
		fourCC := string(b[:4])
		n := binary.LittleEndian.Uint32(b[4:8])
		b = b[chunkHeaderSize:]
		if uint64(n) > uint64(len(b)) {
			return nil, FormatError(fmt.Sprintf("%s chunk size %d exceeds available data %d", fourCC, n, len(b)))
		}
		chunks = append(chunks, chunk{fourCC: fourCC, data: b[:n]})
		b = b[n:]
		if n&1 != 0 && len(b) != 0 {
			b = b[1:]
		}
	}
	return chunks, nil
}

// readFile checks the RIFF WEBP file header of b and returns the chunks
// it holds.
func readFile(b []byte) ([]chunk, error) {
	if len(b) < 12 || string(b[:4]) != fccRIFF || string(b[8:12]) != fccWEBP {
		return nil, FormatError("missing RIFF WEBP header")
	}
	n := binary.LittleEndian.Uint32(b[4:8])
	if n < 4 || uint64(n) > uint64(len(b)-8) {
		return nil, FormatError(fmt.Sprintf("RIFF size %d inconsistent with file size %d", n, len(b)))
	}
	return readChunks(b[12 : 8+n])
}

// writeFile writes a RIFF WEBP file holding chunks to w.
func writeFile(w io.Writer, chunks []chunk) error {
	size := 4 + chunksSize(chunks)
	if uint64(size) > 1<<32-2 {
		return fmt.Errorf("%w: file size %d", ErrTooLarge, size)
	}
	var hdr [12]byte
	copy(hdr[:4], fccRIFF)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(size))
	copy(hdr[8:], fccWEBP)
	_, err := w.Write(hdr[:])
	if err != nil {
		return err
	}
	for _, c := range chunks {
		err = c.writeTo(w)
		if err != nil {
			return err
		}
	}
	return nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// vp8lHasAlpha returns whether the VP8L bitstream in b declares that it
// uses its alpha channel.
func vp8lHasAlpha(b []byte) bool {
	// The 1 byte signature is followed by 14 bits of width-1,
	// 14 bits of height-1 and the alpha_is_used bit.
	if len(b) < 5 || b[0] != 0x2f {
		return false
	}
	return binary.LittleEndian.Uint32(b[1:5])&(1<<28) != 0
}
