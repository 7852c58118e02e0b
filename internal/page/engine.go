// Package page interprets a page schema: it fetches the entity's page
// description, classifies its layout and actions, drives the list data
// lifecycle, and forwards user-triggered actions to the dispatcher.
package page

import (
	"context"
	"sync"

	"metaview/internal/action"
	"metaview/internal/core/apperror"
	"metaview/internal/core/appctx"
	"metaview/internal/schema"
	"metaview/internal/transport"
	"metaview/pkg/logger"
)

// State is the page engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateFetchingConfig
	StateConfigError
	StateGrid
	StateEmpty
	StateList
	StateFetchingData
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingConfig:
		return "fetching-config"
	case StateConfigError:
		return "config-error"
	case StateGrid:
		return "grid"
	case StateEmpty:
		return "empty"
	case StateList:
		return "list"
	case StateFetchingData:
		return "fetching-data"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// View is the render-ready projection of the page handed to the
// presentation collaborator.
type View struct {
	State       State
	Entity      string
	Title       string
	Layout      schema.Layout
	Columns     []schema.Column
	PageActions []schema.ActionDescriptor
	RowActions  []schema.ActionDescriptor
	Rows        []map[string]any
	Widgets     []schema.Widget
	ConfigError string
}

// Engine drives one entity page at a time.
type Engine struct {
	app        *appctx.App
	client     *transport.Client
	dispatcher *action.Dispatcher

	mu          sync.Mutex
	gen         uint64 // incremented on every navigation; stale fetches are discarded
	state       State
	entity      string
	page        *schema.PageSchema
	pageActions []schema.ActionDescriptor
	rowActions  []schema.ActionDescriptor
	rows        []map[string]any
	configError string
}

// New creates an idle Engine.
func New(app *appctx.App, client *transport.Client, dispatcher *action.Dispatcher) *Engine {
	return &Engine{app: app, client: client, dispatcher: dispatcher, state: StateIdle}
}

// Load navigates the engine to an entity: the page schema is fetched fresh
// (no cross-entity cache), actions are partitioned, and list layouts go on
// to fetch their data. A Load that is overtaken by a newer navigation
// discards its responses instead of writing stale state.
func (e *Engine) Load(ctx context.Context, entity string) error {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.entity = entity
	e.state = StateFetchingConfig
	e.page = nil
	e.rows = nil
	e.pageActions = nil
	e.rowActions = nil
	e.configError = ""
	e.mu.Unlock()

	var page schema.PageSchema
	err := e.client.GetJSON(ctx, "/ui/page/"+entity, &page)
	if err != nil {
		if appErr, ok := apperror.AsAppError(err); ok && appErr.HTTPStatus == 400 {
			// Schema endpoint answered with an {error} payload: the page is
			// not available, the shell stays up.
			e.setConfigError(ctx, gen, entity, appErr.Message)
			return apperror.NewSchemaUnavailable(entity, appErr.Message)
		}
		return err
	}
	if page.Error != "" {
		e.setConfigError(ctx, gen, entity, page.Error)
		return apperror.NewSchemaUnavailable(entity, page.Error)
	}

	pageActions, rowActions := schema.PartitionActions(page.Actions)

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		logger.Debug(ctx, "discarding stale page config", "entity", entity)
		return nil
	}
	e.page = &page
	e.pageActions = pageActions
	e.rowActions = rowActions
	switch page.Layout {
	case schema.LayoutGrid:
		// Grid delegates to the dashboard collaborator; no data fetch.
		e.state = StateGrid
		e.mu.Unlock()
		return nil
	case schema.LayoutEmpty:
		e.state = StateEmpty
		e.mu.Unlock()
		return nil
	default:
		e.state = StateList
	}
	e.mu.Unlock()

	return e.fetchData(ctx, gen)
}

// Refresh re-fetches the current list data, re-entering FetchingData.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.page == nil || e.page.Layout != schema.LayoutTable {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	e.mu.Unlock()
	return e.fetchData(ctx, gen)
}

func (e *Engine) fetchData(ctx context.Context, gen uint64) error {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return nil
	}
	entity := e.entity
	e.state = StateFetchingData
	e.mu.Unlock()

	var rows []map[string]any
	err := e.client.GetJSON(ctx, "/"+entity, &rows)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		logger.Debug(ctx, "discarding stale list data", "entity", entity)
		return nil
	}
	if err != nil {
		e.state = StateList
		e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
		return err
	}
	e.rows = rows
	e.state = StateLoaded
	logger.Debug(ctx, "list data loaded", "entity", entity, "rows", len(rows))
	return nil
}

func (e *Engine) setConfigError(ctx context.Context, gen uint64, entity, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return
	}
	e.state = StateConfigError
	e.configError = detail
	logger.Warn(ctx, "page not available", "entity", entity, "error", detail)
}

// HandleAction forwards a user-triggered action to the dispatcher and
// re-fetches the list after any successful mutation.
func (e *Engine) HandleAction(ctx context.Context, a schema.ActionDescriptor, row map[string]any) error {
	e.mu.Lock()
	entity := e.entity
	e.mu.Unlock()

	res, err := e.dispatcher.Handle(ctx, entity, a, row)
	if err != nil {
		return err
	}
	if res.Executed {
		return e.Refresh(ctx)
	}
	return nil
}

// Snapshot returns the current render-ready view, with actions filtered by
// their visibility rules (page actions see an empty row).
func (e *Engine) Snapshot(ctx context.Context) View {
	e.mu.Lock()
	view := View{
		State:       e.state,
		Entity:      e.entity,
		PageActions: e.pageActions,
		RowActions:  e.rowActions,
		Rows:        e.rows,
		ConfigError: e.configError,
	}
	if e.page != nil {
		view.Title = e.page.Title
		view.Layout = e.page.Layout
		view.Columns = e.page.Columns
		view.Widgets = e.page.Widgets
	}
	e.mu.Unlock()

	view.PageActions = e.dispatcher.Visible(ctx, view.PageActions, nil)
	return view
}

// RowActionsFor returns the row-scoped actions visible for one row.
func (e *Engine) RowActionsFor(ctx context.Context, row map[string]any) []schema.ActionDescriptor {
	e.mu.Lock()
	actions := e.rowActions
	e.mu.Unlock()
	return e.dispatcher.Visible(ctx, actions, row)
}
