// Package upstream implements reverse-proxying to a backend: it always
// returns gatewire.Handled from UpstreamPeer, never ResponseSent, since
// the actual response write happens through the normal ResponseWriter the
// caller already owns rather than a separate "send it now" step.
package upstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/nullgate/gatewire"
)

// Options configures one upstream target.
type Options struct {
	// Target is the backend base URL, e.g. "http://127.0.0.1:9000".
	Target string
	// DialTimeout bounds establishing the backend TCP connection.
	DialTimeout time.Duration
	// ResponseHeaderTimeout bounds waiting for the backend's response
	// headers once the request has been sent.
	ResponseHeaderTimeout time.Duration
	// PreserveHost keeps the client's original Host header instead of
	// rewriting it to the target's host.
	PreserveHost bool
}

// Proxy is an UpstreamPeer Stage forwarding requests to a fixed backend.
type Proxy struct {
	gatewire.BaseStage

	target *url.URL
	rp     *httputil.ReverseProxy
	opts   Options
}

// New builds a Proxy for opts.Target.
func New(opts Options) (*Proxy, error) {
	target, err := url.Parse(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("upstream: invalid target %q: %w", opts.Target, err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.ResponseHeaderTimeout == 0 {
		opts.ResponseHeaderTimeout = 30 * time.Second
	}

	p := &Proxy{target: target, opts: opts}
	p.rp = &httputil.ReverseProxy{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: opts.DialTimeout}).DialContext,
			ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		},
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			if opts.PreserveHost {
				r.Out.Host = r.In.Host
			}
			r.Out.Header.Set("X-Forwarded-Host", r.In.Host)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return p, nil
}

func (p *Proxy) UpstreamPeer(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	p.rp.ServeHTTP(sess.Writer(), sess.Request())
	sess.MarkResponded()
	return gatewire.Handled, nil
}
