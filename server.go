// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kortschak/xfade/internal/config"
	"github.com/kortschak/xfade/internal/decode"
	"github.com/kortschak/xfade/internal/pipeline"
	"github.com/kortschak/xfade/internal/preview"
	"github.com/kortschak/xfade/internal/slogext"
	"github.com/kortschak/xfade/internal/webp"
)

// tooFewImages is the message shown when an animation is requested with
// fewer than two images.
const tooFewImages = "Please upload at least 2 images to create an animation."

// maxFormMemory is the amount of an upload held in memory before parts
// are written to temporary files.
const maxFormMemory = 32 << 20

//go:embed ui/index.html
var ui embed.FS

var index = template.Must(template.ParseFS(ui, "ui/index.html"))

// server is the animation web server.
type server struct {
	root      *slog.Logger // root is the logger for other components.
	log       *slog.Logger
	level     *slog.LevelVar
	addSource *atomic.Bool

	cfg     atomic.Pointer[config.Config]
	decoder atomic.Pointer[decode.Decoder]
}

func newServer(ctx context.Context, cfg *config.Config, log *slog.Logger, level *slog.LevelVar, addSource *atomic.Bool) (*server, error) {
	s := &server{
		root:      log,
		log:       log.With(slog.String("component", "xfade.server")),
		level:     level,
		addSource: addSource,
	}
	err := s.configure(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// configure sets the server's run-time configuration. Changes to the
// listen address and TLS settings require a restart.
func (s *server) configure(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		cfg = &config.Config{}
	}
	dec, err := cfg.Decoder()
	if err != nil {
		return err
	}
	if cfg.Log.Level != nil {
		s.level.Set(*cfg.Log.Level)
	}
	if cfg.Log.AddSource != nil {
		s.addSource.Store(*cfg.Log.AddSource)
	}
	if old := s.cfg.Load(); old != nil && old.Server != cfg.Server {
		s.log.LogAttrs(ctx, slog.LevelWarn, "server configuration changes require restart",
			slog.Any("current", old.Server), slog.Any("requested", cfg.Server))
	}
	s.decoder.Store(dec)
	s.cfg.Store(cfg)
	s.log.LogAttrs(ctx, slog.LevelInfo, "configured", slog.Any("config", cfg))
	return nil
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("POST /preview", s.preview)
	mux.HandleFunc("POST /animation", s.animation)
	return mux
}

// serve starts the web server on addr and returns the address it is
// listening on and a function to shut it down.
func (s *server) serve(ctx context.Context, addr string, tlsConfig *tls.Config) (string, func(context.Context) error, error) {
	srv := &http.Server{
		Handler:           s.handler(),
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelError),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	addr = ln.Addr().String()
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "web server listening", slog.String("addr", addr), slog.Bool("tls", tlsConfig != nil))
	go func() {
		err := srv.Serve(ln)
		var lvl slog.Level
		switch err {
		case nil:
			return
		case http.ErrServerClosed:
			lvl = slog.LevelInfo
		default:
			lvl = slog.LevelError
		}
		s.log.LogAttrs(ctx, lvl, "web server closed", slog.Any("error", err))
	}()
	return addr, srv.Shutdown, nil
}

func isLoopback(ctx context.Context, addr string) (bool, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false, err
	}
	if host == "" {
		return false, nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return false, err
	}
	for _, ip := range ips {
		if !ip.IsLoopback() {
			return false, nil
		}
	}
	return true, nil
}

func (s *server) index(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	cfg := s.cfg.Load()
	dec := s.decoder.Load()
	p := cfg.Params()

	var accept []string
	for _, f := range []decode.Format{decode.PNG, decode.JPEG, decode.GIF, decode.WebP, decode.BMP, decode.TIFF} {
		if dec.Allows(f) {
			accept = append(accept, "image/"+string(f))
		}
	}
	var buf bytes.Buffer
	err := index.Execute(&buf, map[string]any{
		"Accept":         strings.Join(accept, ","),
		"Delay":          p.Delay.Milliseconds(),
		"MinDelay":       pipeline.MinDelay.Milliseconds(),
		"MaxDelay":       pipeline.MaxDelay.Milliseconds(),
		"DelayStep":      pipeline.DelayStep.Milliseconds(),
		"Quality":        p.Quality,
		"MinQuality":     pipeline.MinQuality,
		"MaxQuality":     pipeline.MaxQuality,
		"Transitions":    p.Transitions,
		"MaxTransitions": pipeline.MaxTransitions,
	})
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "web server", slog.Any("error", err), slog.Any("req", slogext.Request{Request: req}))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, req, "index.html", time.Time{}, bytes.NewReader(buf.Bytes()))
}

func (s *server) preview(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	cfg := s.cfg.Load()
	files, ok := s.uploads(w, req)
	if !ok {
		return
	}
	if len(files) == 0 {
		http.Error(w, "Please upload at least 1 image to preview.", http.StatusBadRequest)
		return
	}

	const thumb = preview.DefaultThumb
	var (
		frames   = make([]image.Image, len(files))
		captions = preview.Captions(len(files))
		failed   = make(map[int]error)
	)
	sizes, errs := s.sizes(ctx, files)
	var valid []image.Point
	for i, err := range errs {
		if err != nil {
			failed[i] = err
			continue
		}
		valid = append(valid, sizes[i])
	}
	mem := pipeline.EstimateMemory(len(valid), canvasSize(valid), 0)
	if limit := cfg.MaxMemoryBytes(); mem > limit {
		s.log.LogAttrs(ctx, slog.LevelWarn, "memory budget exceeded", slog.Int64("estimate", mem), slog.Int64("limit", limit))
		http.Error(w, fmt.Sprintf("Preview needs %d bytes of frame memory, more than the %d byte limit. Use fewer or smaller images.", mem, limit), http.StatusRequestEntityTooLarge)
		return
	}

	var imgs []image.Image
	for i, f := range files {
		if _, ok := failed[i]; ok {
			continue
		}
		img, err := s.decode(ctx, f)
		if err != nil {
			failed[i] = err
			continue
		}
		imgs = append(imgs, img)
	}
	for i := range failed {
		captions[i] = files[i].Filename
	}
	var canvas []*image.NRGBA
	if len(imgs) != 0 {
		var err error
		canvas, err = pipeline.Preview(imgs)
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelError, "preview", slog.Any("error", err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}
	for i := range frames {
		if err, ok := failed[i]; ok {
			frames[i] = preview.ErrorTile(err, image.Rect(0, 0, thumb, thumb))
			continue
		}
		frames[i] = canvas[0]
		canvas = canvas[1:]
	}

	var buf bytes.Buffer
	err := png.Encode(&buf, preview.Sheet(frames, captions, thumb))
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "preview", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, req, "preview.png", time.Now(), bytes.NewReader(buf.Bytes()))
}

func (s *server) animation(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	cfg := s.cfg.Load()
	files, ok := s.uploads(w, req)
	if !ok {
		return
	}
	if !pipeline.CanTrigger(len(files)) {
		s.log.LogAttrs(ctx, slog.LevelInfo, "too few images", slog.Int("images", len(files)), slog.Any("state", slogext.Stringer{Stringer: pipeline.Stage(len(files))}))
		http.Error(w, tooFewImages, http.StatusBadRequest)
		return
	}
	params, err := formParams(req.MultipartForm, cfg.Params())
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Check limits from the image headers before decoding any pixels.
	sizes, errs := s.sizes(ctx, files)
	err = errors.Join(errs...)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, decode.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}
	canvas := canvasSize(sizes)
	if canvas.X > webp.MaxDimension || canvas.Y > webp.MaxDimension {
		s.log.LogAttrs(ctx, slog.LevelWarn, "canvas too large", slog.Any("canvas", canvas))
		http.Error(w, fmt.Sprintf("Canvas %dx%d is larger than the %[3]dx%[3]d pixel limit for WebP animations.", canvas.X, canvas.Y, webp.MaxDimension), http.StatusRequestEntityTooLarge)
		return
	}
	mem := pipeline.EstimateMemory(len(sizes), canvas, params.Transitions)
	if limit := cfg.MaxMemoryBytes(); mem > limit {
		s.log.LogAttrs(ctx, slog.LevelWarn, "memory budget exceeded", slog.Int64("estimate", mem), slog.Int64("limit", limit))
		http.Error(w, fmt.Sprintf("Animation needs %d bytes of frame memory, more than the %d byte limit. Use fewer or smaller images, or fewer transition frames.", mem, limit), http.StatusRequestEntityTooLarge)
		return
	}

	imgs := make([]image.Image, len(files))
	for i, f := range files {
		imgs[i], err = s.decode(ctx, f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	res, err := pipeline.Run(ctx, pipeline.Request{Images: imgs, Params: params}, s.root)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "animation", slog.Any("error", err))
		switch {
		case errors.Is(err, pipeline.ErrTooFewImages):
			http.Error(w, tooFewImages, http.StatusBadRequest)
		case errors.Is(err, webp.ErrTooLarge):
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	s.log.LogAttrs(ctx, slog.LevelDebug, "deliver", slog.Any("state", slogext.Stringer{Stringer: pipeline.Delivered}))
	w.Header().Set("Content-Type", res.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Name))
	http.ServeContent(w, req, res.Name, time.Now(), bytes.NewReader(res.Data))
}

// uploads returns the image files uploaded with req. If ok is false, an
// error response has been written.
func (s *server) uploads(w http.ResponseWriter, req *http.Request) (files []*multipart.FileHeader, ok bool) {
	ctx := req.Context()
	limit := s.cfg.Load().MaxUploadBytes()
	req.Body = http.MaxBytesReader(w, req.Body, limit)
	err := req.ParseMultipartForm(maxFormMemory)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "web server", slog.Any("error", err), slog.Any("req", slogext.Request{Request: req}))
		// Truncation within part headers loses the MaxBytesError.
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || req.ContentLength > limit {
			http.Error(w, fmt.Sprintf("Upload exceeds the %d byte limit.", limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, "Invalid upload.", http.StatusBadRequest)
		return nil, false
	}
	files = req.MultipartForm.File["images"]
	s.log.LogAttrs(ctx, slog.LevelDebug, "uploads", slog.Any("req", slogext.Request{Request: req}), slog.Any("files", slogext.Files(files)))
	return files, true
}

// sizes returns the dimensions of the uploaded files read from their
// image headers. Errors are prefixed with the file's name.
func (s *server) sizes(ctx context.Context, files []*multipart.FileHeader) ([]image.Point, []error) {
	dec := s.decoder.Load()
	sizes := make([]image.Point, len(files))
	errs := make([]error, len(files))
	for i, f := range files {
		r, err := f.Open()
		if err != nil {
			errs[i] = fmt.Errorf("%s: %w", f.Filename, err)
			continue
		}
		cfg, format, err := dec.DecodeConfig(r)
		r.Close()
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelWarn, "decode config", slog.String("name", f.Filename), slog.String("format", string(format)), slog.Any("error", err))
			errs[i] = fmt.Errorf("%s: %w", f.Filename, err)
			continue
		}
		sizes[i] = image.Pt(cfg.Width, cfg.Height)
	}
	return sizes, errs
}

// canvasSize returns the smallest size holding all the provided sizes.
func canvasSize(sizes []image.Point) image.Point {
	var c image.Point
	for _, p := range sizes {
		c.X = max(c.X, p.X)
		c.Y = max(c.Y, p.Y)
	}
	return c
}

// decode decodes the uploaded file f. Errors are prefixed with the file's
// name.
func (s *server) decode(ctx context.Context, f *multipart.FileHeader) (image.Image, error) {
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Filename, err)
	}
	defer r.Close()
	img, format, err := s.decoder.Load().Decode(r)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "decode", slog.String("name", f.Filename), slog.String("format", string(format)), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", f.Filename, err)
	}
	return img, nil
}

// formParams returns the animation parameters in form, using def for
// fields that are absent.
func formParams(form *multipart.Form, def pipeline.Params) (pipeline.Params, error) {
	p := def
	for _, field := range []struct {
		name string
		set  func(int)
	}{
		{name: "delay", set: func(v int) { p.Delay = time.Duration(v) * time.Millisecond }},
		{name: "quality", set: func(v int) { p.Quality = v }},
		{name: "transitions", set: func(v int) { p.Transitions = v }},
	} {
		vals := form.Value[field.name]
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		v, err := strconv.Atoi(vals[0])
		if err != nil {
			return p, &pipeline.ParamError{Name: field.name, Value: vals[0], Reason: "not an integer"}
		}
		field.set(v)
	}
	return p, nil
}
