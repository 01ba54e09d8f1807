// Package dataaccess implements the stale-while-revalidate cache that sits
// between the page handlers and the catalogue client. Every remote read goes
// through a Store: fresh entries are served directly, stale entries are
// served immediately while a single background refresh runs, and misses block
// on one shared fetch. Mutations invalidate whole resource families.
package dataaccess

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orbitfold/exoview/model"
)

// Resource identifies a cached remote read. Family groups resources that a
// mutation invalidates together ("planets", "dashboard"); Name is the
// operation within the family ("list", "stats").
type Resource struct {
	Family string
	Name   string
}

func (r Resource) String() string {
	return r.Family + "/" + r.Name
}

// FetchFunc loads a resource from the upstream. It is called at most once
// per (resource, cache key) at a time, however many readers are waiting.
type FetchFunc func(ctx context.Context) (any, error)

// QueryResult is the outcome of a cached read.
type QueryResult struct {
	Value any
	// Stale is true when the value was past its staleness window and a
	// background refresh was triggered.
	Stale bool
	Err   error
}

// Recorder receives cache metrics. A nil Recorder disables recording.
type Recorder interface {
	RecordCacheHit(family string)
	RecordCacheMiss(family string)
	RecordCacheStale(family string)
	RecordCacheRefresh(family string, success bool)
	RecordCacheEviction(count int)
}

// inflight is one shared fetch. Waiters block on done and then read value
// and err; the slot itself may have discarded the result if the family was
// invalidated mid-flight.
type inflight struct {
	done  chan struct{}
	value any
	err   error
}

type slot struct {
	resource   Resource
	value      any
	hasValue   bool
	fetchedAt  time.Time
	lastAccess time.Time
	familyGen  uint64
	current    *inflight
}

// Store is a concurrency-safe stale-while-revalidate cache. Staleness is how
// long a value is served without refresh; Retention is how long a stale value
// may still be served while revalidating. Entries unobserved for longer than
// the retention window are evicted by a janitor goroutine.
type Store struct {
	mu         sync.Mutex
	slots      map[string]*slot
	familyGen  map[string]uint64
	subs       map[string][]chan struct{}
	staleness  time.Duration
	retention  time.Duration
	maxEntries int
	logger     *zap.Logger
	recorder   Recorder
	stop       chan struct{}
	stopOnce   sync.Once
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger attaches a logger for refresh failures and evictions.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithRecorder attaches a cache metrics recorder.
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) { s.recorder = r }
}

// WithMaxEntries caps the number of cached slots. Zero means unlimited.
func WithMaxEntries(n int) StoreOption {
	return func(s *Store) { s.maxEntries = n }
}

// NewStore creates a Store and starts its janitor. Close must be called to
// stop it.
func NewStore(staleness, retention time.Duration, opts ...StoreOption) *Store {
	if staleness <= 0 {
		staleness = 30 * time.Second
	}
	if retention < staleness {
		retention = staleness
	}
	s := &Store{
		slots:     make(map[string]*slot),
		familyGen: make(map[string]uint64),
		subs:      make(map[string][]chan struct{}),
		staleness: staleness,
		retention: retention,
		logger:    zap.NewNop(),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.janitor()
	return s
}

// Close stops the janitor goroutine.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Query reads a resource through the cache. The cache key must already be
// canonical; two requests that normalise to the same key share one entry and
// at most one in-flight fetch.
func (s *Store) Query(ctx context.Context, res Resource, cacheKey string, fetch FetchFunc) QueryResult {
	key := res.String() + "?" + cacheKey
	now := time.Now()

	s.mu.Lock()
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{resource: res, familyGen: s.familyGen[res.Family]}
		s.slots[key] = sl
	}
	sl.lastAccess = now

	if sl.hasValue {
		age := now.Sub(sl.fetchedAt)
		switch {
		case age <= s.staleness:
			value := sl.value
			s.mu.Unlock()
			s.record(func(r Recorder) { r.RecordCacheHit(res.Family) })
			return QueryResult{Value: value}
		case age <= s.retention:
			value := sl.value
			s.startRefreshLocked(key, sl, fetch)
			s.mu.Unlock()
			s.record(func(r Recorder) { r.RecordCacheStale(res.Family) })
			return QueryResult{Value: value, Stale: true}
		}
		// Past retention: treat as a miss.
		sl.hasValue = false
		sl.value = nil
	}

	// Miss. Join the in-flight fetch if one is running, otherwise start it.
	fl := sl.current
	if fl == nil {
		fl = s.startRefreshLocked(key, sl, fetch)
	}
	s.mu.Unlock()
	s.record(func(r Recorder) { r.RecordCacheMiss(res.Family) })

	select {
	case <-ctx.Done():
		return QueryResult{Err: abandonedError(ctx.Err())}
	case <-fl.done:
		return QueryResult{Value: fl.value, Err: fl.err}
	}
}

// abandonedError maps a caller's context error onto the envelope taxonomy so
// a handler-timeout expiry surfaces as a 504 rather than a generic 500. The
// same mapping the catalogue client applies to its transport errors.
func abandonedError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.NewBackendTimeoutError()
	}
	return err
}

// startRefreshLocked launches a background fetch for the slot unless one is
// already running. The caller must hold s.mu.
func (s *Store) startRefreshLocked(key string, sl *slot, fetch FetchFunc) *inflight {
	if sl.current != nil {
		return sl.current
	}
	fl := &inflight{done: make(chan struct{})}
	sl.current = fl
	gen := s.familyGen[sl.resource.Family]
	family := sl.resource.Family

	go func() {
		// The fetch outlives any single caller; the upstream client
		// enforces its own timeout.
		value, err := fetch(context.Background())
		fl.value, fl.err = value, err
		close(fl.done)

		persisted := false
		s.mu.Lock()
		cur, ok := s.slots[key]
		if ok && cur == sl && sl.current == fl {
			sl.current = nil
			// Discard results that an invalidation superseded; the
			// waiters above still received them, the cache does not.
			if s.familyGen[family] == gen && err == nil {
				sl.value = value
				sl.hasValue = true
				sl.fetchedAt = time.Now()
				persisted = true
			}
		}
		s.mu.Unlock()

		if persisted {
			s.notify(family)
		}
		s.record(func(r Recorder) { r.RecordCacheRefresh(family, err == nil) })
		if err != nil {
			s.logger.Warn("cache refresh failed",
				zap.String("resource", key),
				zap.Error(err))
		}
	}()
	return fl
}

// Invalidate drops every cached entry in a family and bumps its generation so
// that in-flight fetches started before the call cannot repopulate the cache.
// Subscribers of the family are notified.
func (s *Store) Invalidate(family string) {
	prefix := family + "/"

	s.mu.Lock()
	s.familyGen[family]++
	for key, sl := range s.slots {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if sl.current == nil {
			delete(s.slots, key)
		} else {
			// Keep the slot so waiters can finish, but forget its value.
			sl.hasValue = false
			sl.value = nil
		}
	}
	s.mu.Unlock()

	s.notify(family)
}

// notify signals every subscriber of the family. Sends never block; a
// subscriber that has not drained its channel already has a pending signal.
func (s *Store) notify(family string) {
	s.mu.Lock()
	subs := append([]chan struct{}(nil), s.subs[family]...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel that receives a signal whenever the family
// changes: on invalidation, and when a background refresh lands a fresh
// value. The cancel function releases the subscription.
func (s *Store) Subscribe(family string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs[family] = append(s.subs[family], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.subs[family]
		for i, c := range list {
			if c == ch {
				s.subs[family] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Len reports the number of cached slots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *Store) janitor() {
	interval := s.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep evicts slots unobserved past the retention window, then trims to
// maxEntries oldest-first.
func (s *Store) sweep() {
	now := time.Now()
	evicted := 0

	s.mu.Lock()
	for key, sl := range s.slots {
		if sl.current == nil && now.Sub(sl.lastAccess) > s.retention {
			delete(s.slots, key)
			evicted++
		}
	}
	if s.maxEntries > 0 && len(s.slots) > s.maxEntries {
		type aged struct {
			key  string
			last time.Time
		}
		entries := make([]aged, 0, len(s.slots))
		for key, sl := range s.slots {
			if sl.current == nil {
				entries = append(entries, aged{key, sl.lastAccess})
			}
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].last.Before(entries[j].last)
		})
		excess := len(s.slots) - s.maxEntries
		for i := 0; i < excess && i < len(entries); i++ {
			delete(s.slots, entries[i].key)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.record(func(r Recorder) { r.RecordCacheEviction(evicted) })
		s.logger.Debug("cache sweep", zap.Int("evicted", evicted))
	}
}

func (s *Store) record(fn func(Recorder)) {
	if s.recorder != nil {
		fn(s.recorder)
	}
}
