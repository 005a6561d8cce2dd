// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/vcompose/internal/graph"
	"github.com/ManuGH/vcompose/internal/metrics"
	"github.com/ManuGH/vcompose/internal/orchestrator"
	"github.com/ManuGH/vcompose/internal/timeline"
)

// ErrSessionLimit is returned when MaxSessions sessions are open.
var ErrSessionLimit = errors.New("session limit reached")

// session is one editing session: a timeline plus its render pipelines.
type session struct {
	id      string
	dir     string
	created time.Time
	orch    *orchestrator.Orchestrator

	mu       sync.Mutex
	timeline *timeline.Timeline
	sources  map[string]graph.SourceInfo
}

func (s *session) setTimeline(tl timeline.Timeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline = &tl
}

// currentTimeline returns the last accepted timeline.
func (s *session) currentTimeline() (timeline.Timeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeline == nil {
		return timeline.Timeline{}, false
	}
	return s.timeline.Clone(), true
}

// unprobed lists the paths whose metadata is not cached yet.
func (s *session) unprobed(paths []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range paths {
		if _, ok := s.sources[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// addSources merges probed metadata and returns a copy of the whole cache.
func (s *session) addSources(info map[string]graph.SourceInfo) map[string]graph.SourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sources == nil {
		s.sources = make(map[string]graph.SourceInfo, len(info))
	}
	maps.Copy(s.sources, info)
	return maps.Clone(s.sources)
}

// sessionStore indexes open sessions and enforces the session cap.
type sessionStore struct {
	mu    sync.RWMutex
	max   int
	items map[string]*session
}

func newSessionStore(limit int) *sessionStore {
	return &sessionStore{max: limit, items: make(map[string]*session)}
}

func (st *sessionStore) add(s *session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.max > 0 && len(st.items) >= st.max {
		return ErrSessionLimit
	}
	st.items[s.id] = s
	metrics.SetActiveSessions(len(st.items))
	return nil
}

func (st *sessionStore) get(id string) (*session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.items[id]
	return s, ok
}

func (st *sessionStore) remove(id string) (*session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.items[id]
	if ok {
		delete(st.items, id)
		metrics.SetActiveSessions(len(st.items))
	}
	return s, ok
}

// drain removes and returns every session, oldest first.
func (st *sessionStore) drain() []*session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*session, 0, len(st.items))
	for _, s := range st.items {
		out = append(out, s)
	}
	clear(st.items)
	metrics.SetActiveSessions(0)
	sort.Slice(out, func(i, j int) bool { return out[i].created.Before(out[j].created) })
	return out
}

func (st *sessionStore) count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.items)
}
