package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/query"
)

var errUnavailable = errors.New("store unavailable")

type fetchResult struct {
	records []domain.Record
	err     error
}

type gatedCall struct {
	q       query.Query
	release chan fetchResult
}

// gatedReader blocks every query until the test releases it, ignoring
// cancellation to model a slow transport.
type gatedReader struct {
	arrived chan *gatedCall
}

func newGatedReader() *gatedReader {
	return &gatedReader{arrived: make(chan *gatedCall, 16)}
}

func (g *gatedReader) QueryRecords(_ context.Context, q query.Query) ([]domain.Record, error) {
	call := &gatedCall{q: q, release: make(chan fetchResult, 1)}
	g.arrived <- call
	res := <-call.release
	if res.err != nil {
		return nil, &domain.FetchError{Collection: string(q.Collection), Err: res.err}
	}
	return res.records, nil
}

type scriptedLogs struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	err     error
	block   chan struct{}
	entered chan struct{}

	active    int
	maxActive int
	calls     int
}

func (s *scriptedLogs) QueryLogs(_ context.Context, _ query.Query) ([]domain.LogEntry, error) {
	s.mu.Lock()
	s.calls++
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	block, entered := s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	if s.err != nil {
		return nil, &domain.FetchError{Collection: string(query.CollectionLogs), Err: s.err}
	}
	out := make([]domain.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *scriptedLogs) set(entries []domain.LogEntry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.err = err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeScheduler struct {
	mu      sync.Mutex
	job     func(time.Time)
	stopped bool
}

func (f *fakeScheduler) Start(_ context.Context, job func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job = job
	return nil
}

func (f *fakeScheduler) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.job = nil
	return nil
}

func (f *fakeScheduler) fire() bool {
	f.mu.Lock()
	job := f.job
	f.mu.Unlock()
	if job == nil {
		return false
	}
	job(time.Now())
	return true
}

type blockingWriter struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	entered chan struct{}
	written []domain.CommandRecord
}

func (w *blockingWriter) InsertCommand(_ context.Context, cmd domain.CommandRecord) error {
	if w.entered != nil {
		w.entered <- struct{}{}
	}
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return &domain.WriteError{Collection: string(query.CollectionCommands), Err: w.err}
	}
	w.written = append(w.written, cmd)
	return nil
}

func (w *blockingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

func (w *blockingWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}
