// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg provides the locations of the per-user configuration file
// and runtime directory following the XDG base directory conventions.
package xdg

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigPath returns the path to the named file in the user's config
// directory, creating the file's parent directories if needed. The file
// itself is not created.
func ConfigPath(name string) (string, error) {
	home, ok := envOrDefault(key_XDG_CONFIG_HOME, def_XDG_CONFIG_HOME, _HOME)
	if !ok {
		return "", errors.New("no xdg config directory")
	}
	path := filepath.Join(home, filepath.FromSlash(name))
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return "", err
	}
	return path, nil
}

// RuntimeDir returns the named directory in the user's runtime directory,
// creating it if needed. If the user has no runtime directory, the
// directory is placed in os.TempDir.
func RuntimeDir(name string) (string, error) {
	base, ok := envOrDefault(key_XDG_RUNTIME_DIR, def_XDG_RUNTIME_DIR, _HOME)
	if !ok {
		base = os.TempDir()
	}
	dir := filepath.Join(base, name)
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// envOrDefault return the path corresponding to the provided key and
// default. If home is empty or the default is absolute, the default is
// returned unaltered, otherwise it is returned relative to home.
func envOrDefault(key, def, home string) (string, bool) {
	if key != "" {
		val, ok := os.LookupEnv(key)
		if ok && val != "" {
			return val, true
		}
	}
	if def == "" {
		return "", false
	}
	if home == "" || filepath.IsAbs(def) {
		return def, true
	}
	base, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(base, def), true
}
