package directory

import (
	"context"
	"sync"
)

// SearchResult is one delivery from a background search.
type SearchResult struct {
	ID     uint64
	Filter string
	DNs    []string
}

// Searcher runs directory searches on background goroutines without
// blocking the caller. Each search gets a monotonically increasing
// identifier; only the most recently started search is "current", and
// results from a superseded search are discarded by identifier, not by
// arrival order, since a later search may return before an earlier one is
// cancelled. Cancellation is cooperative: a stale search is told to stop
// but may still deliver an in-flight batch, which the identifier check
// drops.
type Searcher struct {
	session *Session

	mu      sync.Mutex
	lastID  uint64
	current uint64
	cancel  context.CancelFunc
}

// NewSearcher creates a searcher over a session.
func NewSearcher(session *Session) *Searcher {
	return &Searcher{session: session}
}

// Start begins a background search, superseding any search still in
// flight, and returns its identifier. apply runs on the search goroutine
// only when the search is still current at delivery time.
func (s *Searcher) Start(ctx context.Context, filter string, apply func(SearchResult)) uint64 {
	s.mu.Lock()
	s.lastID++
	id := s.lastID
	s.current = id
	if s.cancel != nil {
		s.cancel()
	}
	searchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()

		dns := s.session.Search(searchCtx, filter)

		if !s.IsCurrent(id) {
			return
		}
		apply(SearchResult{ID: id, Filter: filter, DNs: dns})
	}()

	return id
}

// IsCurrent reports whether id identifies the most recently started search.
func (s *Searcher) IsCurrent(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.current
}

// Stop cancels the current search, if any. The identifier check still
// guards against an in-flight delivery racing the cancellation.
func (s *Searcher) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = 0
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
