package tasks

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// Memo caches derived views and stats keyed by a hash of their inputs. It is
// safe for concurrent use and meant to be shared by every request.
type Memo struct {
	mu      sync.RWMutex
	entries map[uint64]*memoEntry
	ttl     time.Duration
	now     func() time.Time

	hits, misses atomic.Uint64
}

type memoEntry struct {
	view      []Task
	stats     Stats
	expiresAt time.Time
}

type viewKey struct {
	Version uint64
	Filter  Filter
	Search  string
	Sort    Sort
}

type statsKey struct {
	Version uint64
}

// NewMemo returns a memo whose entries live for ttl.
func NewMemo(ttl time.Duration) *Memo {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Memo{entries: make(map[uint64]*memoEntry), ttl: ttl, now: time.Now}
}

func hashKey(k any) (uint64, bool) {
	h, err := hashstructure.Hash(k, hashstructure.FormatV2, nil)
	return h, err == nil
}

func (m *Memo) get(h uint64) (*memoEntry, bool) {
	m.mu.RLock()
	e, ok := m.entries[h]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e, true
}

func (m *Memo) put(h uint64, e *memoEntry) {
	e.expiresAt = m.now().Add(m.ttl)
	m.mu.Lock()
	m.entries[h] = e
	m.mu.Unlock()
}

// View returns DeriveView(tasks, filter, search, sort), reusing a previous result
// when version and the view inputs are unchanged.
func (m *Memo) View(version uint64, tasks []Task, filter Filter, search string, sort Sort) []Task {
	h, ok := hashKey(viewKey{Version: version, Filter: filter, Search: search, Sort: sort})
	if !ok {
		return DeriveView(tasks, filter, search, sort)
	}
	if e, hit := m.get(h); hit {
		return append([]Task(nil), e.view...)
	}
	view := DeriveView(tasks, filter, search, sort)
	m.put(h, &memoEntry{view: append([]Task(nil), view...)})
	return view
}

// Stats returns ComputeStats(tasks, now). The counts are memoized on version;
// the due-soon count depends on now and is always recomputed.
func (m *Memo) Stats(version uint64, tasks []Task, now time.Time) Stats {
	h, ok := hashKey(statsKey{Version: version})
	if !ok {
		return ComputeStats(tasks, now)
	}
	var s Stats
	if e, hit := m.get(h); hit {
		s = e.stats
	} else {
		s = countStats(tasks)
		m.put(h, &memoEntry{stats: s})
	}
	s.DueSoon = countDueSoon(tasks, now)
	return s
}

// Sweep drops expired entries.
func (m *Memo) Sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, h)
		}
	}
}

// Counters reports cache hits and misses.
func (m *Memo) Counters() (hits, misses uint64) {
	return m.hits.Load(), m.misses.Load()
}

// versionItem is the part of a task that affects derived output.
type versionItem struct {
	ID          uint
	Title       string
	Description string
	HasDesc     bool
	Due         int64
	HasDue      bool
	Completed   bool
	Priority    string
	CreatedAt   int64
	UpdatedAt   int64
}

// Version hashes a task list. Any change to a field the view or stats read
// yields a different version.
func Version(tasks []Task) uint64 {
	items := make([]versionItem, len(tasks))
	for i, t := range tasks {
		it := versionItem{
			ID:        t.ID,
			Title:     t.Title,
			Completed: t.Completed,
			Priority:  string(t.Priority),
			CreatedAt: t.CreatedAt.UnixNano(),
			UpdatedAt: t.UpdatedAt.UnixNano(),
		}
		if t.Description != nil {
			it.Description, it.HasDesc = *t.Description, true
		}
		if t.DueDate != nil {
			it.Due, it.HasDue = t.DueDate.UnixNano(), true
		}
		items[i] = it
	}
	h, err := hashstructure.Hash(items, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}
