package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests and one-shot runs.
type MemStore struct {
	mu   sync.Mutex
	runs []*Run // insertion order
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) RecordRun(run *Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	cp := *run
	cp.Sites = slices.Clone(run.Sites)
	s.runs = append(s.runs, &cp)
	return run.ID, nil
}

func (s *MemStore) GetRun(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == id {
			cp := *r
			cp.Sites = slices.Clone(r.Sites)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *MemStore) ListRuns(limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Run
	for _, r := range s.newestFirst() {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *r
		cp.Sites = nil
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) SiteHistory(url string, limit int) ([]SiteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SiteEntry
	for _, r := range s.newestFirst() {
		for _, site := range r.Sites {
			if site.URL != url {
				continue
			}
			if limit > 0 && len(out) == limit {
				return out, nil
			}
			out = append(out, SiteEntry{RunID: r.ID, StartedAt: r.StartedAt, Site: site})
		}
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }

// newestFirst orders by StartedAt descending, later inserts first on ties.
func (s *MemStore) newestFirst() []*Run {
	out := slices.Clone(s.runs)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b *Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out
}
