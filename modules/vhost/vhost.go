// Package vhost implements the virtual-hosts dispatcher: the root Stage
// that picks which configured Pipeline handles a request based on the
// Host header, falling back to a default host when none matches.
package vhost

import (
	"context"
	"fmt"

	"github.com/nullgate/gatewire"
)

// HostConfig names one virtual host's pipeline and whether it also serves
// as the fallback for unrecognized Host headers.
type HostConfig struct {
	Host     string
	Pipeline *gatewire.Pipeline
	Default  bool
}

// Dispatcher routes each request to the Pipeline registered for its host.
type Dispatcher struct {
	gatewire.BaseStage

	byHost  map[string]*gatewire.Pipeline
	fallback *gatewire.Pipeline
}

// New builds a Dispatcher from hosts. At most one entry may set Default;
// if none does, the first entry is used as the fallback, matching the
// common "first vhost block wins" convention.
func New(hosts []HostConfig) (*Dispatcher, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("vhost: at least one host must be configured")
	}

	d := &Dispatcher{byHost: make(map[string]*gatewire.Pipeline, len(hosts))}
	for _, h := range hosts {
		if h.Host == "" {
			return nil, fmt.Errorf("vhost: host name must not be empty")
		}
		d.byHost[h.Host] = h.Pipeline
		if h.Default {
			if d.fallback != nil {
				return nil, fmt.Errorf("vhost: more than one default host configured")
			}
			d.fallback = h.Pipeline
		}
	}
	if d.fallback == nil {
		d.fallback = hosts[0].Pipeline
	}
	return d, nil
}

// dispatchCtx remembers which child pipeline serves this request and that
// pipeline's own per-request state, so later phases reuse the same state
// the request phase built rather than starting a child fresh each time.
type dispatchCtx struct {
	chosen   *gatewire.Pipeline
	childCtx any
}

func (d *Dispatcher) NewContext() any { return &dispatchCtx{} }

func (d *Dispatcher) resolve(sess *gatewire.Session) *gatewire.Pipeline {
	if p, ok := d.byHost[sess.Host()]; ok {
		return p
	}
	return d.fallback
}

func (d *Dispatcher) ensure(dc *dispatchCtx, sess *gatewire.Session) {
	if dc.chosen == nil {
		dc.chosen = d.resolve(sess)
		dc.childCtx = dc.chosen.NewContext()
	}
}

func (d *Dispatcher) RequestFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	dc := stageCtx.(*dispatchCtx)
	d.ensure(dc, sess)
	return dc.chosen.RequestFilter(ctx, sess, dc.childCtx)
}

func (d *Dispatcher) UpstreamPeer(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	dc := stageCtx.(*dispatchCtx)
	d.ensure(dc, sess)
	return dc.chosen.UpstreamPeer(ctx, sess, dc.childCtx)
}

func (d *Dispatcher) ResponseFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	dc := stageCtx.(*dispatchCtx)
	d.ensure(dc, sess)
	return dc.chosen.ResponseFilter(ctx, sess, dc.childCtx)
}

func (d *Dispatcher) Logging(ctx context.Context, sess *gatewire.Session, stageCtx any, handlerErr error) {
	dc := stageCtx.(*dispatchCtx)
	d.ensure(dc, sess)
	dc.chosen.Logging(ctx, sess, dc.childCtx, handlerErr)
}
