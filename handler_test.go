package gatewire

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

type stubStage struct {
	BaseStage
	reqResult  Result
	reqErr     error
	logged     bool
	panicOnReq bool
}

func (s *stubStage) RequestFilter(ctx context.Context, sess *Session, stageCtx any) (Result, error) {
	if s.panicOnReq {
		panic("boom")
	}
	return s.reqResult, s.reqErr
}

func (s *stubStage) Logging(ctx context.Context, sess *Session, stageCtx any, handlerErr error) {
	s.logged = true
}

func newTestSession() *Session {
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	return NewSession(rec, req, nil)
}

func TestPipelineStopsAtFirstHandled(t *testing.T) {
	first := &stubStage{reqResult: Handled}
	second := &stubStage{reqResult: ResponseSent}
	p := NewPipeline(first, second)

	sess := newTestSession()
	res, err := p.RequestFilter(context.Background(), sess, p.NewContext())
	if err != nil {
		t.Fatal(err)
	}
	if res != Handled {
		t.Errorf("expected Handled, got %v", res)
	}
}

func TestPipelineContinuesOnUnhandled(t *testing.T) {
	first := &stubStage{reqResult: Unhandled}
	second := &stubStage{reqResult: Handled}
	p := NewPipeline(first, second)

	sess := newTestSession()
	res, err := p.RequestFilter(context.Background(), sess, p.NewContext())
	if err != nil {
		t.Fatal(err)
	}
	if res != Handled {
		t.Errorf("expected second stage's Handled result, got %v", res)
	}
}

func TestPipelineLoggingRunsAllStagesRegardless(t *testing.T) {
	first := &stubStage{reqResult: Handled}
	second := &stubStage{reqResult: Unhandled}
	p := NewPipeline(first, second)

	sess := newTestSession()
	ctx := p.NewContext()
	if _, err := p.RequestFilter(context.Background(), sess, ctx); err != nil {
		t.Fatal(err)
	}
	p.Logging(context.Background(), sess, ctx, nil)

	if !first.logged || !second.logged {
		t.Error("expected every stage's Logging to run regardless of RequestFilter outcome")
	}
}

func TestPipelineRecoversPanicAsPanicError(t *testing.T) {
	stage := &stubStage{panicOnReq: true}
	p := NewPipeline(stage)
	p.ErrorHandler = func(sess *Session, err error) bool {
		var pe *PanicError
		if !errors.As(err, &pe) {
			t.Errorf("expected a *PanicError, got %T", err)
		}
		return true
	}

	sess := newTestSession()
	res, err := p.RequestFilter(context.Background(), sess, p.NewContext())
	if res != ResponseSent {
		t.Errorf("expected ResponseSent after a panic, got %v", res)
	}
	if err == nil {
		t.Error("expected a non-nil error after a panic")
	}
}
