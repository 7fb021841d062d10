package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/ports"
	"RiskMonitor/internal/query"
)

// MemoryStore keeps all collections in process; used for demos and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []domain.Record
	logs     []domain.LogEntry
	commands []domain.CommandRecord
	nextLog  int64
}

var _ ports.RecordStore = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddRecords makes records queryable, replacing any with the same ID.
func (s *MemoryStore) AddRecords(records ...domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		replaced := false
		for i := range s.records {
			if s.records[i].ID == rec.ID {
				s.records[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			s.records = append(s.records, rec)
		}
	}
}

// AppendLog records a backend log entry and assigns its ID.
func (s *MemoryStore) AppendLog(entry domain.LogEntry) domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLog++
	entry.ID = s.nextLog
	s.logs = append(s.logs, entry)
	return entry
}

// Commands returns a copy of every command written so far.
func (s *MemoryStore) Commands() []domain.CommandRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CommandRecord, len(s.commands))
	copy(out, s.commands)
	return out
}

// QueryRecords evaluates the query over the stored records.
func (s *MemoryStore) QueryRecords(ctx context.Context, q query.Query) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Collection: string(q.Collection), Err: err}
	}
	if q.Collection != query.CollectionRecords {
		return nil, &domain.FetchError{Collection: string(q.Collection), Err: fmt.Errorf("not a record collection")}
	}

	s.mu.RLock()
	var out []domain.Record
	for _, rec := range s.records {
		if q.Matches(recordGetter(rec)) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return q.Less(recordGetter(out[i]), recordGetter(out[j]))
	})
	return capped(out, q.Limit), nil
}

// QueryLogs evaluates the query over the stored log entries.
func (s *MemoryStore) QueryLogs(ctx context.Context, q query.Query) ([]domain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Collection: string(q.Collection), Err: err}
	}
	if q.Collection != query.CollectionLogs {
		return nil, &domain.FetchError{Collection: string(q.Collection), Err: fmt.Errorf("not a log collection")}
	}

	s.mu.RLock()
	var out []domain.LogEntry
	for _, entry := range s.logs {
		if q.Matches(logGetter(entry)) {
			out = append(out, entry)
		}
	}
	s.mu.RUnlock()

	// later appends win ties on created_at
	sort.SliceStable(out, func(i, j int) bool {
		a, b := logGetter(out[i]), logGetter(out[j])
		if q.Less(a, b) {
			return true
		}
		if q.Less(b, a) {
			return false
		}
		return out[i].ID > out[j].ID
	})
	return capped(out, q.Limit), nil
}

// InsertCommand appends the command.
func (s *MemoryStore) InsertCommand(ctx context.Context, cmd domain.CommandRecord) error {
	if err := ctx.Err(); err != nil {
		return &domain.WriteError{Collection: string(query.CollectionCommands), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	return nil
}

// Close is a no-op for in-memory storage.
func (s *MemoryStore) Close() error {
	return nil
}

func recordGetter(rec domain.Record) query.Getter {
	return func(f query.Field) any {
		switch f {
		case query.FieldRiskScore:
			return rec.RiskScore
		case query.FieldCollectedAt:
			return rec.CollectedAt
		}
		return nil
	}
}

func logGetter(entry domain.LogEntry) query.Getter {
	return func(f query.Field) any {
		if f == query.FieldCreatedAt {
			return entry.CreatedAt
		}
		return nil
	}
}

func capped[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	if items == nil {
		return []T{}
	}
	return items
}
