package gatewire

import (
	"context"
	"net/http"
)

// Result describes how far a Stage got in handling a request.
type Result int

const (
	// Unhandled means the stage declined to act; later stages run.
	Unhandled Result = iota
	// Handled means the stage made a decision (e.g. picked an upstream,
	// rewrote the request) but has not written a response to the wire.
	Handled
	// ResponseSent means a response has been written to the client;
	// processing should stop immediately.
	ResponseSent
)

// Stage is the contract every module implements. A Pipeline is itself a
// Stage, so stages compose without any distinction between a leaf module
// and a group of them. Any method may be a no-op (return Unhandled, nil);
// modules implement only the phases relevant to them.
type Stage interface {
	// NewContext allocates whatever per-request state this stage needs,
	// or nil if it needs none. The Pipeline stores each child's context in
	// a position-indexed slice rather than requiring a shared generic
	// context type.
	NewContext() any

	// RequestFilter runs first and may short-circuit the pipeline.
	RequestFilter(ctx context.Context, sess *Session, stageCtx any) (Result, error)

	// UpstreamPeer selects (or produces) the response body when no earlier
	// stage already did; returns Handled (never ResponseSent), even when
	// the response has already been written during this call, as
	// modules/upstream does.
	UpstreamPeer(ctx context.Context, sess *Session, stageCtx any) (Result, error)

	// ResponseFilter may inspect/modify the outgoing response before it is
	// flushed (header injection, compression).
	ResponseFilter(ctx context.Context, sess *Session, stageCtx any) (Result, error)

	// Logging runs last, after the response status is known, regardless of
	// what earlier phases returned.
	Logging(ctx context.Context, sess *Session, stageCtx any, handlerErr error)
}

// BaseStage provides no-op implementations of every Stage method, so
// modules that only care about one or two phases can embed it instead of
// writing boilerplate for the rest.
type BaseStage struct{}

func (BaseStage) NewContext() any { return nil }
func (BaseStage) RequestFilter(context.Context, *Session, any) (Result, error) {
	return Unhandled, nil
}
func (BaseStage) UpstreamPeer(context.Context, *Session, any) (Result, error) {
	return Unhandled, nil
}
func (BaseStage) ResponseFilter(context.Context, *Session, any) (Result, error) {
	return Unhandled, nil
}
func (BaseStage) Logging(context.Context, *Session, any, error) {}

// Pipeline composes an ordered list of Stages into a single Stage. Each
// phase runs every child in order until one returns Handled or
// ResponseSent (except Logging, which always runs every child so that
// common-log, metrics, etc. all see the final outcome). Per-request child
// state lives in a []any slice indexed by position — the literal
// "heterogeneous list indexable by position" shape for composition
// without generics across a variable-length, variable-type child set.
type Pipeline struct {
	Stages       []Stage
	ErrorHandler ErrorHandler
}

// NewPipeline builds a Pipeline from stages in execution order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{Stages: stages, ErrorHandler: DefaultErrorHandler}
}

func (p *Pipeline) NewContext() any {
	ctxs := make([]any, len(p.Stages))
	for i, s := range p.Stages {
		ctxs[i] = s.NewContext()
	}
	return ctxs
}

func (p *Pipeline) childCtx(stageCtx any, i int) any {
	slice, ok := stageCtx.([]any)
	if !ok || i >= len(slice) {
		return nil
	}
	return slice[i]
}

func (p *Pipeline) runPhase(ctx context.Context, sess *Session, stageCtx any, phase func(Stage, any) (Result, error)) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
			res = ResponseSent
			if p.ErrorHandler != nil {
				p.ErrorHandler(sess, err)
			}
		}
	}()

	for i, s := range p.Stages {
		r, e := phase(s, p.childCtx(stageCtx, i))
		if e != nil {
			if p.ErrorHandler != nil {
				p.ErrorHandler(sess, e)
			}
			return ResponseSent, e
		}
		if r == Handled || r == ResponseSent {
			return r, nil
		}
	}
	return Unhandled, nil
}

func (p *Pipeline) RequestFilter(ctx context.Context, sess *Session, stageCtx any) (Result, error) {
	return p.runPhase(ctx, sess, stageCtx, func(s Stage, c any) (Result, error) {
		return s.RequestFilter(ctx, sess, c)
	})
}

func (p *Pipeline) UpstreamPeer(ctx context.Context, sess *Session, stageCtx any) (Result, error) {
	return p.runPhase(ctx, sess, stageCtx, func(s Stage, c any) (Result, error) {
		return s.UpstreamPeer(ctx, sess, c)
	})
}

func (p *Pipeline) ResponseFilter(ctx context.Context, sess *Session, stageCtx any) (Result, error) {
	return p.runPhase(ctx, sess, stageCtx, func(s Stage, c any) (Result, error) {
		return s.ResponseFilter(ctx, sess, c)
	})
}

func (p *Pipeline) Logging(ctx context.Context, sess *Session, stageCtx any, handlerErr error) {
	defer func() {
		if r := recover(); r != nil {
			sess.Logger().Error("panic during logging phase", "panic", r)
		}
	}()
	for i, s := range p.Stages {
		s.Logging(ctx, sess, p.childCtx(stageCtx, i), handlerErr)
	}
}

// ServeHTTP drives the full request_filter -> upstream_peer ->
// response_filter -> logging sequence for a single request, the way
// cmd/gatewire wires a Pipeline to net/http.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := NewSession(w, r, nil)
	ctx := r.Context()
	stageCtx := p.NewContext()

	var handlerErr error
	res, err := p.RequestFilter(ctx, sess, stageCtx)
	if err != nil {
		handlerErr = err
	}

	if res == Unhandled {
		res, err = p.UpstreamPeer(ctx, sess, stageCtx)
		if err != nil {
			handlerErr = err
		}
	}

	if res != ResponseSent {
		_, err = p.ResponseFilter(ctx, sess, stageCtx)
		if err != nil {
			handlerErr = err
		}
	}

	if !sess.Responded() {
		sess.MarkResponded()
		w.WriteHeader(404)
	}

	p.Logging(ctx, sess, stageCtx, handlerErr)
}
