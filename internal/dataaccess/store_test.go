package dataaccess

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orbitfold/exoview/model"
)

var listResource = Resource{Family: "planets", Name: "list"}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestQueryCachesWithinStalenessWindow(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v1", nil
	}

	for i := 0; i < 3; i++ {
		res := s.Query(context.Background(), listResource, "limit=25", fetch)
		if res.Err != nil {
			t.Fatalf("Query() error = %v", res.Err)
		}
		if res.Value != "v1" {
			t.Errorf("Value = %v, want v1", res.Value)
		}
		if res.Stale {
			t.Error("Stale = true, want false")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestDistinctCacheKeysDoNotShareEntries(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		return calls.Add(1), nil
	}

	a := s.Query(context.Background(), listResource, "limit=25", fetch)
	b := s.Query(context.Background(), listResource, "limit=50", fetch)
	if a.Value == b.Value {
		t.Errorf("distinct keys returned the same value %v", a.Value)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
}

func TestStaleValueServedWhileRevalidating(t *testing.T) {
	s := NewStore(10*time.Millisecond, time.Minute)
	defer s.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			return "old", nil
		}
		return "new", nil
	}

	first := s.Query(context.Background(), listResource, "", fetch)
	if first.Value != "old" || first.Stale {
		t.Fatalf("first = %+v, want fresh old", first)
	}

	time.Sleep(20 * time.Millisecond)

	second := s.Query(context.Background(), listResource, "", fetch)
	if second.Value != "old" {
		t.Errorf("stale read Value = %v, want old", second.Value)
	}
	if !second.Stale {
		t.Error("stale read Stale = false, want true")
	}

	waitFor(t, func() bool { return calls.Load() == 2 }, "background refresh")
	waitFor(t, func() bool {
		return s.Query(context.Background(), listResource, "", fetch).Value == "new"
	}, "refreshed value")
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const readers = 10
	results := make([]QueryResult, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Query(context.Background(), listResource, "", fetch)
		}(i)
	}

	waitFor(t, func() bool { return calls.Load() == 1 }, "first fetch to start")
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for i, res := range results {
		if res.Err != nil || res.Value != "shared" {
			t.Errorf("reader %d got %+v, want shared", i, res)
		}
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		return calls.Add(1), nil
	}

	s.Query(context.Background(), listResource, "", fetch)
	s.Query(context.Background(), Resource{Family: "planets", Name: "count"}, "", fetch)
	s.Query(context.Background(), Resource{Family: "dashboard", Name: "stats"}, "", fetch)

	s.Invalidate("planets")

	res := s.Query(context.Background(), listResource, "", fetch)
	if res.Stale {
		t.Error("post-invalidation read Stale = true, want false")
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("fetch calls = %d, want 4 (planets refetched)", got)
	}

	// The other family is untouched.
	s.Query(context.Background(), Resource{Family: "dashboard", Name: "stats"}, "", fetch)
	if got := calls.Load(); got != 4 {
		t.Errorf("fetch calls = %d, want 4 (dashboard still cached)", got)
	}
}

func TestInvalidateDiscardsSupersededResult(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			<-release
			return "stale-result", nil
		}
		return "fresh-result", nil
	}

	done := make(chan QueryResult, 1)
	go func() {
		done <- s.Query(context.Background(), listResource, "", fetch)
	}()
	waitFor(t, func() bool { return calls.Load() == 1 }, "fetch to start")

	s.Invalidate("planets")
	close(release)

	// The waiter still gets the result it was blocked on.
	got := <-done
	if got.Value != "stale-result" {
		t.Errorf("waiter Value = %v, want stale-result", got.Value)
	}

	// But the cache did not keep it; the next read refetches.
	res := s.Query(context.Background(), listResource, "", fetch)
	if res.Value != "fresh-result" {
		t.Errorf("post-invalidation Value = %v, want fresh-result", res.Value)
	}
}

func TestRefreshErrorKeepsLastGoodValue(t *testing.T) {
	s := NewStore(10*time.Millisecond, time.Minute)
	defer s.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return "good", nil
		}
		return nil, errors.New("upstream down")
	}

	if res := s.Query(context.Background(), listResource, "", fetch); res.Value != "good" {
		t.Fatalf("first Value = %v, want good", res.Value)
	}

	time.Sleep(20 * time.Millisecond)

	res := s.Query(context.Background(), listResource, "", fetch)
	if res.Err != nil {
		t.Errorf("stale read Err = %v, want nil", res.Err)
	}
	if res.Value != "good" {
		t.Errorf("stale read Value = %v, want good", res.Value)
	}

	waitFor(t, func() bool { return calls.Load() >= 2 }, "failing refresh")

	// The failed refresh must not clobber the cached value.
	again := s.Query(context.Background(), listResource, "", fetch)
	if again.Value != "good" {
		t.Errorf("post-failure Value = %v, want good", again.Value)
	}
}

func TestBlockedMissRespectsContext(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	release := make(chan struct{})
	defer close(release)
	fetch := func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := s.Query(ctx, listResource, "", fetch)
	var ee *model.ErrorEnvelope
	if !errors.As(res.Err, &ee) || ee.Code != model.ErrBackendTimeout {
		t.Errorf("Err = %v, want a %s envelope", res.Err, model.ErrBackendTimeout)
	}
}

func TestAbandonedMissMapsCancellation(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	release := make(chan struct{})
	defer close(release)
	fetch := func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Query(ctx, listResource, "", fetch)
	var ee *model.ErrorEnvelope
	if !errors.As(res.Err, &ee) || ee.Code != model.ErrBackendTimeout {
		t.Errorf("Err = %v, want a %s envelope", res.Err, model.ErrBackendTimeout)
	}
}

func TestSubscribeNotifiesOnInvalidate(t *testing.T) {
	s := NewStore(time.Minute, 5*time.Minute)
	defer s.Close()

	ch, cancel := s.Subscribe("planets")
	defer cancel()

	s.Invalidate("planets")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after Invalidate")
	}

	s.Invalidate("dashboard")
	select {
	case <-ch:
		t.Error("notified for an unrelated family")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeNotifiesWhenRefreshResolves(t *testing.T) {
	s := NewStore(10*time.Millisecond, time.Minute)
	defer s.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			return "old", nil
		}
		return "new", nil
	}

	first := s.Query(context.Background(), listResource, "", fetch)
	if first.Value != "old" || first.Stale {
		t.Fatalf("first = %+v, want fresh old", first)
	}

	ch, cancel := s.Subscribe("planets")
	defer cancel()

	time.Sleep(20 * time.Millisecond)

	second := s.Query(context.Background(), listResource, "", fetch)
	if !second.Stale {
		t.Fatal("stale read Stale = false, want true")
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after the background refresh resolved")
	}
	if got := s.Query(context.Background(), listResource, "", fetch).Value; got != "new" {
		t.Errorf("post-refresh Value = %v, want new", got)
	}
}

func TestSubscribeNotNotifiedOnFailedRefresh(t *testing.T) {
	s := NewStore(10*time.Millisecond, time.Minute)
	defer s.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return "old", nil
		}
		return nil, errors.New("upstream down")
	}

	s.Query(context.Background(), listResource, "", fetch)
	ch, cancel := s.Subscribe("planets")
	defer cancel()

	time.Sleep(20 * time.Millisecond)
	s.Query(context.Background(), listResource, "", fetch)

	waitFor(t, func() bool { return calls.Load() == 2 }, "failed refresh")
	select {
	case <-ch:
		t.Error("notified although the refresh failed and kept the old value")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSweepEvictsUnobservedEntries(t *testing.T) {
	s := NewStore(time.Millisecond, 5*time.Millisecond)
	defer s.Close()

	fetch := func(ctx context.Context) (any, error) { return "v", nil }
	s.Query(context.Background(), listResource, "", fetch)
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	time.Sleep(10 * time.Millisecond)
	s.sweep()

	if s.Len() != 0 {
		t.Errorf("Len() after sweep = %d, want 0", s.Len())
	}
}
