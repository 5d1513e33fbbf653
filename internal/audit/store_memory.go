package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps entries in process. Used in development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LogAccessEvent appends the entry.
func (s *MemoryStore) LogAccessEvent(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entries = append(s.entries, e)
	return nil
}

// FailWith makes every following write return err. Pass nil to recover.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Entries returns a copy of the stored entries in write order.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Timeline filters and pages stored entries newest first.
func (s *MemoryStore) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	page, pageSize := filters.normalized()
	all := s.Entries()
	matched := make([]Entry, 0, len(all))
	for _, e := range all {
		if !filters.From.IsZero() && e.Timestamp.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && !e.Timestamp.Before(filters.To) {
			continue
		}
		if filters.UserID != "" && e.UserID != filters.UserID {
			continue
		}
		if filters.EventType != "" && e.EventType != filters.EventType {
			continue
		}
		if filters.RoutePrefix != "" && !strings.HasPrefix(e.RouteID, filters.RoutePrefix) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	offset := (page - 1) * pageSize
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + pageSize + 1
	if end > len(matched) {
		end = len(matched)
	}
	return paginate(matched[offset:end], page, pageSize), nil
}

var _ Store = (*MemoryStore)(nil)
