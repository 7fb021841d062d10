package usecase

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/infrastructure/storage"
	"RiskMonitor/internal/logging"
	"RiskMonitor/internal/metrics"
	"RiskMonitor/internal/query"
)

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not resolve")
	}
}

func nextCall(t *testing.T, g *gatedReader) *gatedCall {
	t.Helper()
	select {
	case c := <-g.arrived:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no query reached the store")
		return nil
	}
}

func records(prefix string, n int, score float64) []domain.Record {
	out := make([]domain.Record, 0, n)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, domain.Record{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			RiskScore:   score,
			CollectedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func newTestDashboard(reader *gatedReader) *Dashboard {
	return NewDashboard(DashboardDeps{
		Records: reader,
		Logger:  logging.Discard(),
		Metrics: metrics.New(),
	})
}

func TestDashboardStartsLoading(t *testing.T) {
	t.Parallel()

	d := newTestDashboard(newGatedReader())
	vm := d.ViewModel()

	assert.True(t, vm.Loading)
	assert.Equal(t, DisplayLoading, vm.Display)
	assert.Equal(t, domain.DefaultFilter(), vm.Filter)
	assert.NotNil(t, vm.Records)
}

func TestDashboardScenarioDefaultFilter(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.AddRecords(
		domain.Record{ID: "t1", RiskScore: 2, CollectedAt: t1},
		domain.Record{ID: "t2", RiskScore: 8, CollectedAt: t1.Add(time.Hour)},
		domain.Record{ID: "t3", RiskScore: 5, CollectedAt: t1.Add(2 * time.Hour)},
	)

	d := NewDashboard(DashboardDeps{Records: store, Logger: logging.Discard()})
	wait(t, d.Start())

	vm := d.ViewModel()
	require.Len(t, vm.Records, 3)
	assert.Equal(t, "t3", vm.Records[0].ID)
	assert.Equal(t, "t2", vm.Records[1].ID)
	assert.Equal(t, "t1", vm.Records[2].ID)
	assert.Equal(t, 1, vm.HighRiskCount)
	assert.Equal(t, 3, vm.Total)
	assert.False(t, vm.Loading)
	assert.Empty(t, vm.Error)
	assert.Equal(t, DisplayRecords, vm.Display)
}

func TestDashboardFilterPropertiesAgainstMemoryStore(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	store := storage.NewMemoryStore()
	base := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		store.AddRecords(domain.Record{
			ID:          fmt.Sprintf("r%d", i),
			RiskScore:   float64(rng.Intn(11)),
			CollectedAt: base.Add(time.Duration(rng.Intn(20*24*60)) * time.Minute),
		})
	}

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	d := NewDashboard(DashboardDeps{Records: store, Logger: logging.Discard()})

	for _, sortOrder := range []domain.SortOrder{domain.SortByDate, domain.SortByRisk} {
		wait(t, d.OnFilterChange(domain.FilterState{
			MinRisk:   domain.MinRiskHigh,
			SortOrder: sortOrder,
			DateRange: domain.DateRange{Start: &start, End: &end},
		}))

		vm := d.ViewModel()
		require.NotEmpty(t, vm.Records)
		assert.LessOrEqual(t, len(vm.Records), query.MaxLimit)
		assert.Equal(t, len(vm.Records), vm.HighRiskCount)

		for i, rec := range vm.Records {
			assert.GreaterOrEqual(t, rec.RiskScore, 7.0)
			assert.False(t, rec.CollectedAt.Before(start))
			assert.True(t, rec.CollectedAt.Before(end.AddDate(0, 0, 1)))
			if i == 0 {
				continue
			}
			prev := vm.Records[i-1]
			if sortOrder == domain.SortByRisk {
				assert.GreaterOrEqual(t, prev.RiskScore, rec.RiskScore)
			} else {
				assert.False(t, prev.CollectedAt.Before(rec.CollectedAt))
			}
		}
	}
}

func TestDashboardLatestIssuedFetchWins(t *testing.T) {
	t.Parallel()

	reader := newGatedReader()
	d := newTestDashboard(reader)

	doneA := d.OnFilterChange(domain.FilterState{MinRisk: domain.MinRiskAll, SortOrder: domain.SortByDate})
	callA := nextCall(t, reader)
	doneB := d.OnFilterChange(domain.FilterState{MinRisk: domain.MinRiskHigh, SortOrder: domain.SortByRisk})
	callB := nextCall(t, reader)

	assert.Empty(t, callA.q.Predicates)
	assert.Len(t, callB.q.Predicates, 1)

	callB.release <- fetchResult{records: records("b", 2, 9)}
	wait(t, doneB)

	vm := d.ViewModel()
	assert.False(t, vm.Loading)
	require.Len(t, vm.Records, 2)
	assert.Equal(t, "b-0", vm.Records[0].ID)

	callA.release <- fetchResult{records: records("a", 5, 1)}
	wait(t, doneA)

	vm = d.ViewModel()
	require.Len(t, vm.Records, 2)
	assert.Equal(t, "b-0", vm.Records[0].ID)
	assert.Equal(t, 2, vm.HighRiskCount)
	assert.Equal(t, domain.SortByRisk, vm.Filter.SortOrder)
}

func TestDashboardLoadingUntilLatestResolves(t *testing.T) {
	t.Parallel()

	reader := newGatedReader()
	d := newTestDashboard(reader)

	doneA := d.OnFilterChange(domain.DefaultFilter())
	callA := nextCall(t, reader)
	doneB := d.OnFilterChange(domain.FilterState{MinRisk: domain.MinRiskMedium, SortOrder: domain.SortByDate})
	callB := nextCall(t, reader)

	callA.release <- fetchResult{records: records("a", 1, 1)}
	wait(t, doneA)
	vm := d.ViewModel()
	assert.True(t, vm.Loading)
	assert.Empty(t, vm.Records)

	callB.release <- fetchResult{err: errUnavailable}
	wait(t, doneB)
	vm = d.ViewModel()
	assert.False(t, vm.Loading)
	assert.Contains(t, vm.Error, "store unavailable")
	assert.Equal(t, DisplayError, vm.Display)
}

func TestDashboardFailedRefreshKeepsStaleRecords(t *testing.T) {
	t.Parallel()

	reader := newGatedReader()
	d := newTestDashboard(reader)

	done := d.Start()
	nextCall(t, reader).release <- fetchResult{records: records("r", 10, 8)}
	wait(t, done)

	done = d.OnFilterChange(domain.FilterState{MinRisk: domain.MinRiskHigh, SortOrder: domain.SortByDate})
	nextCall(t, reader).release <- fetchResult{err: errUnavailable}
	wait(t, done)

	vm := d.ViewModel()
	assert.Len(t, vm.Records, 10)
	assert.Equal(t, 10, vm.HighRiskCount)
	assert.NotEmpty(t, vm.Error)
	assert.Equal(t, DisplayRecords, vm.Display)

	done = d.OnFilterChange(domain.DefaultFilter())
	nextCall(t, reader).release <- fetchResult{records: records("ok", 3, 1)}
	wait(t, done)

	vm = d.ViewModel()
	assert.Empty(t, vm.Error)
	assert.Len(t, vm.Records, 3)
	assert.Equal(t, 0, vm.HighRiskCount)
}

func TestDashboardEmptyResult(t *testing.T) {
	t.Parallel()

	reader := newGatedReader()
	d := newTestDashboard(reader)

	done := d.Start()
	nextCall(t, reader).release <- fetchResult{records: nil}
	wait(t, done)

	vm := d.ViewModel()
	assert.Equal(t, DisplayEmpty, vm.Display)
	assert.False(t, vm.Loading)
	assert.Empty(t, vm.Error)
	assert.NotNil(t, vm.Records)
}

func TestDashboardCloseDiscardsLateResults(t *testing.T) {
	t.Parallel()

	reader := newGatedReader()
	d := newTestDashboard(reader)

	done := d.Start()
	call := nextCall(t, reader)
	d.Close()

	call.release <- fetchResult{records: records("late", 3, 9)}
	wait(t, done)

	vm := d.ViewModel()
	assert.Empty(t, vm.Records)
	assert.Equal(t, 0, vm.HighRiskCount)

	wait(t, d.OnFilterChange(domain.DefaultFilter()))
	select {
	case <-reader.arrived:
		t.Fatal("closed dashboard issued a fetch")
	default:
	}
}

func TestDashboardEachChangeIssuesOneFetch(t *testing.T) {
	t.Parallel()

	reader := newGatedReader()
	d := newTestDashboard(reader)

	var dones []<-chan struct{}
	for i := 0; i < 3; i++ {
		dones = append(dones, d.OnFilterChange(domain.DefaultFilter()))
		nextCall(t, reader).release <- fetchResult{}
	}
	for _, done := range dones {
		wait(t, done)
	}
	assert.Empty(t, reader.arrived)
}
