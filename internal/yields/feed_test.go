package yields

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yetify/yetify-cli/internal/httpx"
)

const poolsBody = `{"data":[
	{"chain":"NEAR","project":"ref-finance","symbol":"USDC","apy":12.5,"tvlUsd":1000000},
	{"chain":"NEAR","project":"burrow","symbol":"NEAR","apy":8.1,"tvlUsd":5000000},
	{"chain":"Ethereum","project":"aave-v3","symbol":"USDC","apy":3.2,"tvlUsd":90000000},
	{"chain":"Ethereum","project":"compound-v3","symbol":"USDC","apy":null,"tvlUsd":null}
]}`

func newTestFeed(t *testing.T, handler http.HandlerFunc) (*Feed, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cache, err := OpenCache(filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"))
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	feed := NewFeed(httpx.New(5*time.Second, 0), cache, zerolog.Nop())
	feed.SetBase(srv.URL)
	return feed, srv
}

func TestTopFiltersAndSorts(t *testing.T) {
	feed, _ := newTestFeed(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(poolsBody))
	})
	ctx := context.Background()

	near := feed.Top(ctx, "near", "", 10)
	if len(near) != 2 {
		t.Fatalf("near pools = %d, want 2", len(near))
	}
	// Sorted by TVL, highest first.
	if near[0].Protocol != "burrow" || near[1].Protocol != "ref-finance" {
		t.Fatalf("unexpected order: %+v", near)
	}

	ref := feed.Top(ctx, "near", "ref", 10)
	if len(ref) != 1 || ref[0].APY != 12.5 {
		t.Fatalf("protocol filter failed: %+v", ref)
	}

	if got := feed.Top(ctx, "", "", 1); len(got) != 1 {
		t.Fatalf("limit not applied: %d", len(got))
	}
}

func TestTopCachesFeedResponses(t *testing.T) {
	var calls atomic.Int64
	feed, _ := newTestFeed(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(poolsBody))
	})
	ctx := context.Background()

	feed.Top(ctx, "near", "", 10)
	feed.Top(ctx, "ethereum", "", 10)
	if calls.Load() != 1 {
		t.Fatalf("feed fetched %d times, want 1 (cached)", calls.Load())
	}
}

func TestTopFallsBackToStaleCache(t *testing.T) {
	var fail atomic.Bool
	feed, _ := newTestFeed(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(poolsBody))
	})
	ctx := context.Background()

	if got := feed.Top(ctx, "near", "", 10); len(got) != 2 {
		t.Fatalf("warm-up fetch failed: %d", len(got))
	}

	// Age the cached entry past its TTL but inside the stale window.
	if _, err := feed.cache.db.Exec("UPDATE feed_cache SET created_at = created_at - 600"); err != nil {
		t.Fatalf("age cache entry: %v", err)
	}
	fail.Store(true)
	if got := feed.Top(ctx, "near", "", 10); len(got) != 2 {
		t.Fatalf("stale fallback not served: %d", len(got))
	}
}

func TestTopDegradesToEmptyOnFeedFailure(t *testing.T) {
	feed, srv := newTestFeed(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	if got := feed.Top(context.Background(), "near", "", 10); len(got) != 0 {
		t.Fatalf("unreachable feed should read as empty, got %d", len(got))
	}
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"))
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer cache.Close()

	if err := cache.Set("k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	res, err := cache.Get("k", 0)
	if err != nil || !res.Hit || res.Stale {
		t.Fatalf("fresh entry misread: %+v err=%v", res, err)
	}
	if string(res.Value) != "v" {
		t.Fatalf("value = %q", res.Value)
	}
	if res2, _ := cache.Get("missing", 0); res2.Hit {
		t.Fatalf("missing key reported a hit")
	}
}
