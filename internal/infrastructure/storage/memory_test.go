package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/query"
)

func seededMemory(t *testing.T) (*MemoryStore, time.Time) {
	t.Helper()

	t1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.AddRecords(
		domain.Record{ID: "a", RiskScore: 2, CollectedAt: t1},
		domain.Record{ID: "b", RiskScore: 8, CollectedAt: t1.Add(time.Hour)},
		domain.Record{ID: "c", RiskScore: 5, CollectedAt: t1.Add(2 * time.Hour)},
	)
	return store, t1
}

func ids(records []domain.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestMemoryStoreDefaultFilterNewestFirst(t *testing.T) {
	t.Parallel()

	store, _ := seededMemory(t)
	records, err := store.QueryRecords(context.Background(), query.Builder{}.Build(domain.DefaultFilter()))
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "b", "a"}, ids(records))
	assert.Equal(t, 1, domain.CountHighRisk(records))
}

func TestMemoryStoreRiskFilterAndSort(t *testing.T) {
	t.Parallel()

	store, _ := seededMemory(t)
	q := query.Builder{}.Build(domain.FilterState{MinRisk: domain.MinRiskMedium, SortOrder: domain.SortByRisk})
	records, err := store.QueryRecords(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, ids(records))
}

func TestMemoryStoreLimit(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		store.AddRecords(domain.Record{ID: string(rune('A' + i)), CollectedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	records, err := store.QueryRecords(context.Background(), query.Builder{}.Build(domain.DefaultFilter()))
	require.NoError(t, err)
	assert.Len(t, records, query.MaxLimit)
}

func TestMemoryStoreEmptyResultIsNotNil(t *testing.T) {
	t.Parallel()

	records, err := NewMemoryStore().QueryRecords(context.Background(), query.Builder{}.Build(domain.DefaultFilter()))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestMemoryStoreLatestLog(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store.AppendLog(domain.LogEntry{Message: "first", Level: "INFO", CreatedAt: at})
	store.AppendLog(domain.LogEntry{Message: "second", Level: "INFO", CreatedAt: at})
	store.AppendLog(domain.LogEntry{Message: "older", Level: "INFO", CreatedAt: at.Add(-time.Minute)})

	entries, err := store.QueryLogs(context.Background(), query.LatestLog())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Message)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().QueryRecords(ctx, query.Builder{}.Build(domain.DefaultFilter()))
	var fe *domain.FetchError
	assert.ErrorAs(t, err, &fe)

	err = NewMemoryStore().InsertCommand(ctx, domain.CommandRecord{ID: "x"})
	var we *domain.WriteError
	assert.ErrorAs(t, err, &we)
}
