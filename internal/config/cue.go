// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/gocode/gocodec"
)

// Schema is the CUE schema for a valid configuration. Durations are
// expressed in nanoseconds.
const Schema = `
{
	server?:   _#server
	defaults?: _#defaults
	log?:      _#log
	decode?:   _#decode
}

_#server: {
	addr?:             string
	max_upload_bytes?: int & >0
	max_memory_bytes?: int & >0
	cert_pem?:         string
	key_pem?:          string
	ca_pem?:           string
	insecure?:         bool
}

_#defaults: {
	delay?:       int & >=100000000 & <=2000000000
	quality?:     int & >=1 & <=100
	transitions?: int & >=0 & <=30
}

_#log: {
	level?:      =~"(?i)^(?:debug|info|warn|error)$"
	add_source?: bool
}

_#decode: {
	formats?:    [... =~"(?i)^(?:png|jpe?g|gif|webp|bmp|tiff)$"]
	max_pixels?: int & >=0
}
`

// Validate performs a validation of the provided configuration value, returning
// a list of invalid paths and a CUE errors.Error explaining the issues found if
// the configuration is invalid according to the provided schema.
func Validate(schema string, cfg any) (paths [][]string, err error) {
	ctx := cuecontext.New()

	v := ctx.CompileString(schema)
	codec := gocodec.New(ctx, nil)

	w, err := codec.Decode(cfg)
	if err != nil {
		return nil, err
	}

	u := v.Unify(w)
	err = u.Validate(cue.Concrete(true), cue.Final())
	errs := cerrors.Errors(err)
	if len(errs) != 0 {
		paths = make([][]string, 0, len(errs))
		err = cerrors.Append(
			cerrors.Promote(err, ""),
			cerrors.Promote(fmt.Errorf("%s", u), "not concrete"),
		)
	}
	for _, err := range errs {
		p := cerrors.Path(err)
		if p != nil {
			paths = append(paths, p)
		}
	}

	return unique(paths), err
}

// unique returns paths lexically sorted in ascending order and with repeated
// elements omitted.
func unique(paths [][]string) [][]string {
	if len(paths) < 2 {
		return paths
	}
	slices.SortFunc(paths, slices.Compare[[]string])
	return slices.CompactFunc(paths, slices.Equal[[]string])
}
