package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/metrics"
	"RiskMonitor/internal/ports"
	"RiskMonitor/internal/query"
)

// DisplayState tells the presentation which body to render.
type DisplayState string

const (
	DisplayLoading DisplayState = "loading"
	DisplayError   DisplayState = "error"
	DisplayEmpty   DisplayState = "empty"
	DisplayRecords DisplayState = "records"
)

// ViewModel is an immutable snapshot of the dashboard for rendering.
type ViewModel struct {
	Records       []domain.Record    `json:"records"`
	Loading       bool               `json:"loading"`
	Error         string             `json:"error,omitempty"`
	HighRiskCount int                `json:"highRiskCount"`
	Total         int                `json:"total"`
	Filter        domain.FilterState `json:"filter"`
	Display       DisplayState       `json:"display"`
}

// DashboardDeps wires the dashboard controller.
type DashboardDeps struct {
	Records ports.RecordReader
	Builder query.Builder
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Dashboard owns the filter state and the displayed result set. Every filter
// change issues one fetch; only the most recently issued fetch may commit,
// whatever order fetches complete in.
type Dashboard struct {
	records ports.RecordReader
	builder query.Builder
	logger  *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	filter       domain.FilterState
	result       []domain.Record
	highRisk     int
	loading      bool
	errMsg       string
	issued       uint64
	cancelLatest context.CancelFunc
	closed       bool
}

// NewDashboard constructs a controller with the default filter. It reports
// loading until the first fetch resolves.
func NewDashboard(deps DashboardDeps) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		records: deps.Records,
		builder: deps.Builder,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		filter:  domain.DefaultFilter(),
		result:  []domain.Record{},
		loading: true,
	}
}

// Start issues the initial fetch for the current filter.
func (d *Dashboard) Start() <-chan struct{} {
	return d.OnFilterChange(d.Filter())
}

// OnFilterChange stores the filter and issues a fresh fetch, superseding any
// fetch still in flight. The returned channel closes once this fetch has
// resolved, whether it committed or was discarded.
func (d *Dashboard) OnFilterChange(filter domain.FilterState) <-chan struct{} {
	done := make(chan struct{})

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		close(done)
		return done
	}

	d.issued++
	seq := d.issued
	d.filter = filter
	d.loading = true
	if d.cancelLatest != nil {
		d.cancelLatest()
	}
	ctx, cancel := context.WithCancel(d.ctx)
	d.cancelLatest = cancel
	q := d.builder.Build(filter)
	d.mu.Unlock()

	d.debug("fetch issued", "seq", seq, "query", q.String())
	go d.fetch(ctx, cancel, seq, q, done)
	return done
}

func (d *Dashboard) fetch(ctx context.Context, cancel context.CancelFunc, seq uint64, q query.Query, done chan struct{}) {
	defer close(done)
	defer cancel()

	started := time.Now()
	records, err := d.records.QueryRecords(ctx, q)
	elapsed := time.Since(started).Seconds()

	d.mu.Lock()
	if d.closed || seq != d.issued {
		d.mu.Unlock()
		d.metrics.Fetch(metrics.ResultSuperseded, elapsed)
		d.debug("fetch discarded", "seq", seq)
		return
	}

	d.loading = false
	d.cancelLatest = nil
	if err != nil {
		d.errMsg = err.Error()
		d.mu.Unlock()
		d.metrics.Fetch(metrics.ResultError, elapsed)
		if d.logger != nil {
			d.logger.Warn("record fetch failed", "seq", seq, "error", err)
		}
		return
	}

	if records == nil {
		records = []domain.Record{}
	}
	d.result = records
	d.highRisk = domain.CountHighRisk(records)
	d.errMsg = ""
	total, high := len(d.result), d.highRisk
	d.mu.Unlock()

	d.metrics.Fetch(metrics.ResultSuccess, elapsed)
	d.metrics.ResultSet(total, high)
	d.debug("fetch committed", "seq", seq, "records", total, "high_risk", high)
}

// Filter returns the current filter state.
func (d *Dashboard) Filter() domain.FilterState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// ViewModel returns a snapshot of the displayed state.
func (d *Dashboard) ViewModel() ViewModel {
	d.mu.Lock()
	defer d.mu.Unlock()

	records := make([]domain.Record, len(d.result))
	copy(records, d.result)

	vm := ViewModel{
		Records:       records,
		Loading:       d.loading,
		Error:         d.errMsg,
		HighRiskCount: d.highRisk,
		Total:         len(records),
		Filter:        d.filter,
	}

	switch {
	case vm.Loading && vm.Total == 0:
		vm.Display = DisplayLoading
	case vm.Error != "" && vm.Total == 0:
		vm.Display = DisplayError
	case vm.Total == 0:
		vm.Display = DisplayEmpty
	default:
		vm.Display = DisplayRecords
	}
	return vm
}

// Close abandons in-flight fetches; results resolving afterwards are discarded.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.closed = true
	if d.cancelLatest != nil {
		d.cancelLatest()
		d.cancelLatest = nil
	}
	d.mu.Unlock()

	d.cancel()
}

func (d *Dashboard) debug(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
