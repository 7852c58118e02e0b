package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaview/internal/schema"
	"metaview/internal/session"
	"metaview/internal/transport"
)

func newCache(t *testing.T, handler http.Handler) (*SchemaCache, *httptest.Server, *session.Memory) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := transport.New(transport.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	store := session.NewMemory()
	return New(client, store), srv, store
}

func portalHandler(t *testing.T, etag string, hits *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ui/portal" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		json.NewEncoder(w).Encode([]schema.Module{
			{Label: "Sales", Items: []schema.MenuItem{{Label: "Invoices", Entity: "Invoice"}}},
		})
	})
}

func TestConditionalMenuFetch(t *testing.T) {
	var hits atomic.Int32
	c, _, store := newCache(t, portalHandler(t, `"abc"`, &hits))
	ctx := context.Background()

	modules, arena, err := c.Menu(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.NotNil(t, arena)
	assert.Equal(t, `"abc"`, store.ETag("ui/portal"))

	// The second fetch is conditional; a 304 leaves the in-memory slice
	// reference untouched.
	again, arena2, err := c.Menu(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Same(t, &modules[0], &again[0], "304 must not replace cached schema")
	assert.Same(t, arena, arena2)
}

func TestConditionalFetchIdempotent(t *testing.T) {
	var hits atomic.Int32
	c, _, _ := newCache(t, portalHandler(t, `"abc"`, &hits))
	ctx := context.Background()

	first, _, err := c.Menu(ctx)
	require.NoError(t, err)
	snapshot, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, _, err := c.Menu(ctx)
		require.NoError(t, err)
		current, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(snapshot), string(current))
	}
}

func TestMenuFetchInFlightGuard(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		json.NewEncoder(w).Encode([]schema.Module{{Label: "Sales"}})
	})
	c, _, _ := newCache(t, handler)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Menu(context.Background())
			assert.NoError(t, err)
		}()
	}
	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load(), "concurrent callers must share one fetch")
}

func TestMenuSurvivesRestartOn304(t *testing.T) {
	var hits atomic.Int32
	handler := portalHandler(t, `"abc"`, &hits)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := transport.New(transport.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	store := session.NewMemory()
	ctx := context.Background()

	first, _, err := New(client, store).Menu(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second cache over the same persisted store models a new process: the
	// 304 must rebuild the menu from the stored payload, not return nothing.
	again, arena, err := New(client, store).Menu(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	require.NotNil(t, arena)
	require.Len(t, again, 1)
	assert.Equal(t, "Sales", again[0].Label)
	assert.GreaterOrEqual(t, arena.FindEntity("Invoice"), 0)
}

func TestDashboardSurvivesRestartOn304(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"d1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"d1"`)
		json.NewEncoder(w).Encode(schema.DashboardSchema{Name: "Main", Layout: schema.LayoutGrid})
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := transport.New(transport.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	store := session.NewMemory()
	ctx := context.Background()

	_, err = New(client, store).Dashboard(ctx, "Main")
	require.NoError(t, err)

	dash, err := New(client, store).Dashboard(ctx, "Main")
	require.NoError(t, err)
	require.NotNil(t, dash)
	assert.Equal(t, "Main", dash.Name)
}

func TestDashboardConditionalFetch(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"d1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"d1"`)
		json.NewEncoder(w).Encode(schema.DashboardSchema{
			Name:   "Main",
			Layout: schema.LayoutGrid,
			Widgets: []schema.Widget{
				{Name: "total", Type: schema.WidgetStat, Label: "Total", Value: json.RawMessage(`42`)},
			},
		})
	})
	c, _, store := newCache(t, handler)
	ctx := context.Background()

	dash, err := c.Dashboard(ctx, "Main")
	require.NoError(t, err)
	require.NotNil(t, dash)
	assert.Equal(t, `"d1"`, store.ETag("ui/dashboard/Main"))

	again, err := c.Dashboard(ctx, "Main")
	require.NoError(t, err)
	assert.Same(t, dash, again, "304 must keep the cached pointer")
	assert.Equal(t, int32(2), hits.Load())
}

func TestMenuFetchError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"no portal defined"}`))
	})
	c, _, _ := newCache(t, handler)

	_, _, err := c.Menu(context.Background())
	require.Error(t, err)
}
