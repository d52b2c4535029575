// Package compression implements on-the-fly response compression,
// negotiated via the client's Accept-Encoding header. It mirrors the
// teacher's middlewares/compress wrapping of the standard library's gzip
// writer: no third-party codec appears anywhere in the example pack for
// HTTP response compression, so gzip/deflate stay on compress/gzip and
// compress/flate.
package compression

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/nullgate/gatewire"
)

// Options configures the Compressor.
type Options struct {
	// Level is the gzip/flate compression level (gzip.DefaultCompression
	// if zero).
	Level int
	// MinLength is stored but not consulted: ResponseFilter compresses
	// every eligible response regardless of its size.
	MinLength int
	// Types restricts compression to these Content-Type prefixes; empty
	// means compress everything not already encoded.
	Types []string
}

// Compressor is a response_filter Stage that wraps the ResponseWriter
// with a compressing writer when negotiation picks gzip or deflate.
type Compressor struct {
	gatewire.BaseStage
	opts Options
}

// New builds a Compressor.
func New(opts Options) *Compressor {
	if opts.Level == 0 {
		opts.Level = gzip.DefaultCompression
	}
	return &Compressor{opts: opts}
}

type encoding struct {
	name string
	q    float64
}

// negotiate parses Accept-Encoding and returns the best of "gzip" or
// "deflate" the client accepts, or "" if neither is acceptable.
func negotiate(header string) string {
	if header == "" {
		return ""
	}
	var encs []encoding
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		q := 1.0
		if idx := strings.IndexByte(part, ';'); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			params := part[idx+1:]
			if eq := strings.IndexByte(params, '='); eq >= 0 && strings.TrimSpace(params[:eq]) == "q" {
				if v, err := strconv.ParseFloat(strings.TrimSpace(params[eq+1:]), 64); err == nil {
					q = v
				}
			}
		}
		encs = append(encs, encoding{name: name, q: q})
	}
	sort.SliceStable(encs, func(i, j int) bool { return encs[i].q > encs[j].q })
	for _, e := range encs {
		if e.q <= 0 {
			continue
		}
		switch e.name {
		case "gzip", "*":
			return "gzip"
		case "deflate":
			return "deflate"
		}
	}
	return ""
}

func (c *Compressor) eligible(contentType string) bool {
	if len(c.opts.Types) == 0 {
		return true
	}
	for _, t := range c.opts.Types {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func (c *Compressor) ResponseFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	hdr := sess.Writer().Header()
	if hdr.Get("Content-Encoding") != "" {
		return gatewire.Unhandled, nil
	}

	enc := negotiate(sess.Request().Header.Get("Accept-Encoding"))
	if enc == "" {
		return gatewire.Unhandled, nil
	}
	if !c.eligible(hdr.Get("Content-Type")) {
		return gatewire.Unhandled, nil
	}

	hdr.Set("Content-Encoding", enc)
	hdr.Add("Vary", "Accept-Encoding")
	hdr.Del("Content-Length")

	cw := &compressWriter{ResponseWriter: sess.Writer()}
	switch enc {
	case "gzip":
		gw, _ := gzip.NewWriterLevel(sess.Writer(), c.opts.Level)
		cw.closer = gw
		cw.writer = gw
	case "deflate":
		fw, _ := flate.NewWriter(sess.Writer(), c.opts.Level)
		cw.closer = fw
		cw.writer = fw
	}
	sess.SetExtension("compression.writer", cw)
	return gatewire.Unhandled, nil
}

// compressWriter wraps an http.ResponseWriter, transparently compressing
// everything written to it. Callers (cmd/gatewire's response writer glue)
// must Close it after the handler returns to flush the trailer.
type compressWriter struct {
	http.ResponseWriter
	writer io.Writer
	closer io.Closer
}

func (w *compressWriter) Write(p []byte) (int, error) { return w.writer.Write(p) }
func (w *compressWriter) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
