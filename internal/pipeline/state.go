// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import "fmt"

// State is the state of an animation session.
type State int

const (
	AwaitingUpload State = iota
	PreviewReady
	ParametersSet
	Encoding
	Encoded
	Delivered
)

var stateNames = [...]string{
	AwaitingUpload: "awaiting upload",
	PreviewReady:   "preview ready",
	ParametersSet:  "parameters set",
	Encoding:       "encoding",
	Encoded:        "encoded",
	Delivered:      "delivered",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Stage returns the state of a session after n images have been
// uploaded.
func Stage(n int) State {
	if n < 1 {
		return AwaitingUpload
	}
	return PreviewReady
}

// CanTrigger returns whether a session holding n images may start
// encoding.
func CanTrigger(n int) bool {
	return n >= 2
}
