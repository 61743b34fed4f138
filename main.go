// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The xfade command serves a web interface that builds looping cross-fade
// animations from uploaded images.
//
// Uploaded images are centered on a shared transparent canvas, optionally
// separated by linearly blended transition frames, and encoded as an
// infinitely looping animated WebP.
//
// Configuration is read from xfade/config.toml in the user's XDG config
// directory unless a path is given with -config. Changes to the file are
// applied while the server is running, except for the [server] section
// which is only read at start-up.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/kortschak/xfade/internal/config"
	"github.com/kortschak/xfade/internal/mtls"
	"github.com/kortschak/xfade/internal/slogext"
	"github.com/kortschak/xfade/internal/version"
	"github.com/kortschak/xfade/internal/xdg"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	cfgPath := flag.String("config", "", "path to the configuration file (default xfade/config.toml in the XDG config directory)")
	addrFlag := flag.String("addr", "", "listen address (overrides configuration)")
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	logStdout := flag.Bool("log_stdout", false, "log to stdout instead of stderr")
	v := flag.Bool("version", false, "print version and exit")
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
	addSource := slogext.NewAtomicBool(*lines)
	logDst := os.Stderr
	if *logStdout {
		logDst = os.Stdout
	}
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(logDst, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})
	mlog := log.With(slog.String("component", "xfade.main"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	path := *cfgPath
	if path == "" {
		path, err = xdg.ConfigPath("xfade/config.toml")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
	}
	mlog.LogAttrs(ctx, slog.LevelInfo, "config path", slog.String("path", path))
	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		mlog.LogAttrs(ctx, slog.LevelInfo, "no config file, using defaults", slog.String("path", path))
		cfg = &config.Config{}
	default:
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return internalError
	}

	addr := cfg.Addr()
	if *addrFlag != "" {
		addr = *addrFlag
	}
	tlsConfig, err := serverTLS(cfg.Server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure tls: %v\n", err)
		return internalError
	}
	ok, err := isLoopback(ctx, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid listen address: %v\n", err)
		return invocationError
	}
	if !ok && tlsConfig == nil && !cfg.Server.Insecure {
		fmt.Fprintf(os.Stderr, "cannot serve on non-loopback address %s without tls\n", addr)
		return internalError
	}

	unlock, err := lockAddr(addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	defer unlock()

	srv, err := newServer(ctx, cfg, log, &level, addSource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		return internalError
	}
	addr, shutdown, err := srv.serve(ctx, addr, tlsConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to serve: %v\n", err)
		return internalError
	}
	mlog.LogAttrs(ctx, slog.LevelInfo, "serving", slog.String("addr", addr))

	changes := make(chan config.Change)
	watcher, err := config.NewWatcher(ctx, path, changes, -1, log)
	if err != nil {
		mlog.LogAttrs(ctx, slog.LevelWarn, "not watching config", slog.Any("error", err))
	} else {
		defer watcher.Close()
		go func() {
			for {
				var change config.Change
				select {
				case <-ctx.Done():
					return
				case change = <-changes:
				}
				switch {
				case change.Err != nil:
					mlog.LogAttrs(ctx, slog.LevelWarn, "config stream error", slog.Any("error", change.Err))
				case change.Config == nil:
					mlog.LogAttrs(ctx, slog.LevelWarn, "config removed, keeping current configuration", slog.Any("event", change.Event))
				default:
					mlog.LogAttrs(ctx, slog.LevelDebug, "config stream element", slog.Any("change", change))
					err := srv.configure(ctx, change.Config)
					if err != nil {
						mlog.LogAttrs(ctx, slog.LevelWarn, "configure error", slog.Any("error", err))
					}
				}
			}
		}()
	}

	<-ctx.Done()
	mlog.LogAttrs(context.Background(), slog.LevelInfo, "terminating")
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = shutdown(ctx)
	if err != nil {
		mlog.LogAttrs(ctx, slog.LevelError, "shutdown", slog.Any("error", err))
		return internalError
	}
	return success
}

// serverTLS returns the TLS configuration described by cfg, or nil if no
// certificate is configured.
func serverTLS(cfg config.Server) (*tls.Config, error) {
	if cfg.CertPEM == "" && cfg.KeyPEM == "" && cfg.CAPEM == "" {
		return nil, nil
	}
	if cfg.CertPEM == "" || cfg.KeyPEM == "" {
		return nil, errors.New("both cert_pem and key_pem must be set")
	}
	return mtls.LoadServerConfig(cfg.CAPEM, cfg.CertPEM, cfg.KeyPEM)
}

// lockAddr takes a pid lock for the listen address, returning a function
// that releases it.
func lockAddr(addr string) (unlock func(), err error) {
	dir, err := xdg.RuntimeDir("xfade")
	if err != nil {
		return nil, err
	}
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', '[', ']', '%':
			return '_'
		}
		return r
	}, addr)
	pidFile := filepath.Join(dir, name+".pid")
	fl := flock.New(pidFile)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("xfade is already running on %s", addr)
	}
	err = os.WriteFile(pidFile, []byte(fmt.Sprintln(os.Getpid())), 0o600)
	if err != nil {
		fl.Unlock()
		return nil, err
	}
	return func() {
		fl.Unlock()
		os.Remove(pidFile)
	}, nil
}
