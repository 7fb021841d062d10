package web

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"RiskMonitor/internal/metrics"
)

// BoundaryState is the containment state of the presentation tree.
type BoundaryState string

const (
	BoundaryHealthy BoundaryState = "Healthy"
	BoundaryFailed  BoundaryState = "Failed"
)

// RenderFault is an unexpected failure raised while producing a page.
type RenderFault struct {
	Err   error
	Stack []byte
	At    time.Time
}

func (f *RenderFault) Error() string {
	return fmt.Sprintf("render fault: %v", f.Err)
}

func (f *RenderFault) Unwrap() error {
	return f.Err
}

// Boundary contains faults raised by the handlers it wraps. The first fault
// latches the boundary into Failed; every later request gets the diagnostic
// page until the process restarts.
type Boundary struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	fault   atomic.Pointer[RenderFault]
}

// NewBoundary constructs a healthy boundary.
func NewBoundary(logger *slog.Logger, m *metrics.Metrics) *Boundary {
	return &Boundary{logger: logger, metrics: m}
}

// State reports whether a fault has been captured.
func (b *Boundary) State() BoundaryState {
	if b.fault.Load() != nil {
		return BoundaryFailed
	}
	return BoundaryHealthy
}

// Fault returns the captured fault, or nil while healthy.
func (b *Boundary) Fault() *RenderFault {
	return b.fault.Load()
}

// Wrap buffers next's response so a fault never leaves a half-written page.
func (b *Boundary) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fault := b.fault.Load(); fault != nil {
			writeFault(w, fault)
			return
		}

		buf := newBufferedWriter()
		if fault := b.serve(buf, r, next); fault != nil {
			b.capture(fault)
			writeFault(w, b.fault.Load())
			return
		}
		buf.flushTo(w)
	})
}

func (b *Boundary) serve(w http.ResponseWriter, r *http.Request, next http.Handler) (fault *RenderFault) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		err, ok := rec.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", rec)
		}
		fault = &RenderFault{Err: err, Stack: debug.Stack(), At: time.Now()}
	}()
	next.ServeHTTP(w, r)
	return nil
}

func (b *Boundary) capture(fault *RenderFault) {
	if !b.fault.CompareAndSwap(nil, fault) {
		return
	}
	b.metrics.RenderFault()
	if b.logger != nil {
		b.logger.Error("presentation fault contained",
			"error", fault.Err,
			"stack", string(fault.Stack))
	}
}

func writeFault(w http.ResponseWriter, fault *RenderFault) {
	var body bytes.Buffer
	if err := pages.ExecuteTemplate(&body, "fault.html", fault); err != nil {
		http.Error(w, fault.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = body.WriteTo(w)
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = b.body.WriteTo(w)
}
