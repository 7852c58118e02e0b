// Package cache retrieves the navigation menu and dashboard schemas with
// ETag-based conditional GETs. Payloads are persisted next to their ETags,
// so a 304 in a fresh process rebuilds state from disk while a 304 in a
// warm process leaves in-memory state untouched. Concurrent fetches of the
// same key are collapsed to one request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"metaview/internal/core/apperror"
	"metaview/internal/schema"
	"metaview/internal/transport"
	"metaview/pkg/logger"
)

// SchemaStore persists schema payloads together with their ETags across
// runs. A conditional GET is only issued when the payload the 304 refers to
// can be served back from the store.
type SchemaStore interface {
	CachedSchema(key string) (etag string, body []byte)
	SetCachedSchema(key, etag string, body []byte) error
}

// SchemaCache holds the conditionally fetched navigation and dashboard
// schemas.
type SchemaCache struct {
	client *transport.Client
	store  SchemaStore
	group  singleflight.Group

	mu         sync.RWMutex
	menu       *menuState
	dashboards *dashState
}

type menuState struct {
	modules []schema.Module
	arena   *schema.MenuArena
}

type dashState struct {
	byName map[string]*schema.DashboardSchema
}

// New creates a SchemaCache.
func New(client *transport.Client, store SchemaStore) *SchemaCache {
	return &SchemaCache{
		client:     client,
		store:      store,
		menu:       &menuState{},
		dashboards: &dashState{byName: make(map[string]*schema.DashboardSchema)},
	}
}

const menuKey = "ui/portal"

// Menu returns the portal navigation, fetching conditionally. Two concurrent
// callers share a single in-flight request; the loser of the race never
// issues a second fetch.
func (c *SchemaCache) Menu(ctx context.Context) ([]schema.Module, *schema.MenuArena, error) {
	_, err, _ := c.group.Do(menuKey, func() (any, error) {
		return nil, c.fetchMenu(ctx)
	})
	if err != nil {
		return nil, nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.menu.modules, c.menu.arena, nil
}

func (c *SchemaCache) fetchMenu(ctx context.Context) error {
	body, status, err := c.conditionalGet(ctx, "/ui/portal", menuKey)
	if err != nil {
		return err
	}
	if status == http.StatusNotModified {
		c.mu.RLock()
		populated := c.menu.modules != nil
		c.mu.RUnlock()
		if populated {
			logger.Debug(ctx, "portal menu not modified")
			return nil
		}
		// First use in this process: body is the persisted payload the 304
		// refers to, and state is rebuilt from it below.
	}

	var modules []schema.Module
	if err := json.Unmarshal(body, &modules); err != nil {
		return apperror.NewDecode(err)
	}
	c.mu.Lock()
	c.menu.modules = modules
	c.menu.arena = schema.BuildMenuArena(modules)
	c.mu.Unlock()
	logger.Info(ctx, "portal menu refreshed", "modules", len(modules))
	return nil
}

// Dashboard returns the named dashboard schema, fetching conditionally.
func (c *SchemaCache) Dashboard(ctx context.Context, name string) (*schema.DashboardSchema, error) {
	key := "ui/dashboard/" + name
	_, err, _ := c.group.Do(key, func() (any, error) {
		return nil, c.fetchDashboard(ctx, name, key)
	})
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dashboards.byName[name], nil
}

func (c *SchemaCache) fetchDashboard(ctx context.Context, name, key string) error {
	body, status, err := c.conditionalGet(ctx, "/ui/dashboard/"+name, key)
	if err != nil {
		return err
	}
	if status == http.StatusNotModified {
		c.mu.RLock()
		populated := c.dashboards.byName[name] != nil
		c.mu.RUnlock()
		if populated {
			logger.Debug(ctx, "dashboard not modified", "dashboard", name)
			return nil
		}
	}

	var dash schema.DashboardSchema
	if err := json.Unmarshal(body, &dash); err != nil {
		return apperror.NewDecode(err)
	}
	c.mu.Lock()
	c.dashboards.byName[name] = &dash
	c.mu.Unlock()
	logger.Info(ctx, "dashboard refreshed", "dashboard", name, "widgets", len(dash.Widgets))
	return nil
}

// conditionalGet issues a GET, conditional when the store holds both the
// ETag and the payload for the key, and returns the body and status. A 304
// answers with the persisted payload; a 200 persists the response ETag and
// body together.
func (c *SchemaCache) conditionalGet(ctx context.Context, path, key string) ([]byte, int, error) {
	var (
		hdr    http.Header
		cached []byte
	)
	if c.store != nil {
		if etag, body := c.store.CachedSchema(key); etag != "" && len(body) > 0 {
			cached = body
			hdr = http.Header{"If-None-Match": []string{etag}}
		}
	}

	resp, err := c.client.Do(ctx, http.MethodGet, path, nil, hdr)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		io.Copy(io.Discard, resp.Body)
		return cached, resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, transport.DecodeError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apperror.NewTransport(fmt.Errorf("read %s: %w", path, err))
	}
	if c.store != nil {
		if etag := resp.Header.Get("ETag"); etag != "" {
			if err := c.store.SetCachedSchema(key, etag, body); err != nil {
				logger.Warn(ctx, "failed to persist schema", "key", key, "error", err)
			}
		}
	}
	return body, resp.StatusCode, nil
}
