// Package form interprets a form schema: tabbed sections of typed fields
// bound to one flat record. It fetches schema and record in parallel,
// injects relation options, coerces raw input per widget kind, and executes
// create/update saves.
package form

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"metaview/internal/core/apperror"
	"metaview/internal/core/appctx"
	"metaview/internal/relation"
	"metaview/internal/schema"
	"metaview/internal/transport"
	"metaview/pkg/logger"
)

// View is the render-ready projection of the form.
type View struct {
	Name     string
	Entity   string
	Sections []schema.Section
	Values   map[string]any
	Options  map[string][]schema.RelationOption
}

// Engine drives one form session. Relation option sets live for the session
// only: navigating to another entity or record discards them.
type Engine struct {
	app      *appctx.App
	client   *transport.Client
	resolver *relation.Resolver

	// OnSaved receives the record id after a successful save; the caller
	// decides navigation.
	OnSaved func(entity string, id any)

	mu      sync.Mutex
	gen     uint64
	entity  string
	id      string
	form    *schema.FormSchema
	values  map[string]any
	options map[string][]schema.RelationOption
}

// New creates an Engine.
func New(app *appctx.App, client *transport.Client, resolver *relation.Resolver) *Engine {
	return &Engine{app: app, client: client, resolver: resolver}
}

// Load binds the engine to an entity and optional record id. Schema and
// record are fetched independently and in parallel; the schema fetch then
// gates on the relation resolver so every relation field has its options
// before the form becomes interactive. A Load overtaken by a newer
// navigation discards its responses.
func (e *Engine) Load(ctx context.Context, entity, id string) error {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.entity = entity
	e.id = id
	e.form = nil
	e.values = make(map[string]any)
	e.options = nil
	e.mu.Unlock()

	var (
		form    schema.FormSchema
		options map[string][]schema.RelationOption
		record  map[string]any
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.client.GetJSON(gctx, "/ui/form/"+entity, &form); err != nil {
			return err
		}
		// Relation targets are derived from the schema, so this fetch is
		// sequential with it while staying concurrent with the record fetch.
		options = e.resolver.Resolve(gctx, &form)
		return nil
	})
	if id != "" {
		g.Go(func() error {
			return e.client.GetJSON(gctx, "/"+entity+"/"+id, &record)
		})
	}
	if err := g.Wait(); err != nil {
		e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		logger.Debug(ctx, "discarding stale form load", "entity", entity, "id", id)
		return nil
	}
	e.form = &form
	e.options = options
	if record != nil {
		// Every schema field whose name keys the record binds directly.
		for _, f := range form.Fields() {
			if v, ok := record[f.Name]; ok {
				e.values[f.Name] = v
			}
		}
		if v, ok := record["id"]; ok {
			e.values["id"] = v
		}
	}
	logger.Debug(ctx, "form loaded", "entity", entity, "id", id,
		"sections", len(form.Layout), "relations", len(options))
	return nil
}

// Set coerces raw user input for the named field per its widget kind and
// stores it in the flat form state. Unknown fields are rejected.
func (e *Engine) Set(field, raw string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.form == nil {
		return apperror.NewValidation("no form loaded")
	}

	var def *schema.Field
	for _, f := range e.form.Fields() {
		if f.Name == field {
			def = &f
			break
		}
	}
	if def == nil {
		return apperror.NewValidation(fmt.Sprintf("unknown field %s", field))
	}

	value, err := Coerce(*def, raw)
	if err != nil {
		return err
	}
	e.values[field] = value
	return nil
}

// Coerce converts raw input into the stored representation for a widget
// kind. Numeric and date widgets coerce to numeric/ISO types; currency
// stores a normalized numeric magnitude, never a formatted string.
func Coerce(f schema.Field, raw string) (any, error) {
	switch f.Widget {
	case schema.WidgetNumberInput:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("%s must be a number", f.DisplayLabel()))
		}
		return n, nil

	case schema.WidgetCheckbox:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("%s must be true or false", f.DisplayLabel()))
		}
		return b, nil

	case schema.WidgetDatePicker:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("%s must be an ISO date (YYYY-MM-DD)", f.DisplayLabel()))
		}
		return t.Format("2006-01-02"), nil

	case schema.WidgetDateTimePicker:
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("%s must be an RFC 3339 timestamp", f.DisplayLabel()))
		}
		return t.Format(time.RFC3339), nil

	case schema.WidgetCurrencyInput:
		cleaned := normalizeCurrency(raw)
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("%s must be an amount", f.DisplayLabel()))
		}
		// json.Number keeps the magnitude numeric on the wire without
		// float rounding.
		return json.Number(d.String()), nil

	case schema.WidgetRelationPicker, schema.WidgetSelect, schema.WidgetTextInput,
		schema.WidgetTextArea, schema.WidgetFileUpload:
		return raw, nil

	default:
		// Unknown widget kinds render a placeholder and accept nothing.
		return nil, apperror.NewValidation(fmt.Sprintf("unsupported widget %q for %s", f.Widget, f.DisplayLabel()))
	}
}

// normalizeCurrency strips grouping and symbol characters, keeping digits,
// sign, and decimal point.
func normalizeCurrency(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// createResponse is the server's create envelope.
type createResponse struct {
	ID any `json:"id"`
}

// Save serializes the full flat form state as JSON and issues an update
// (idempotent replace) when a record id is bound, else a create. Success
// notifies and emits the saved signal; failure surfaces the structured error
// payload and keeps form state intact.
func (e *Engine) Save(ctx context.Context) (any, error) {
	e.mu.Lock()
	if e.form == nil {
		e.mu.Unlock()
		return nil, apperror.NewValidation("no form loaded")
	}
	entity := e.entity
	id := e.id
	body := make(map[string]any, len(e.values))
	for k, v := range e.values {
		body[k] = v
	}
	e.mu.Unlock()

	if err := e.validate(body); err != nil {
		e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
		return nil, err
	}

	var savedID any
	if id != "" {
		if err := e.client.Send(ctx, "PUT", "/"+entity+"/"+id, body, nil); err != nil {
			e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
			return nil, err
		}
		savedID = id
	} else {
		var created createResponse
		if err := e.client.Send(ctx, "POST", "/"+entity, body, &created); err != nil {
			e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
			return nil, err
		}
		savedID = created.ID
	}

	e.app.Notify(fmt.Sprintf("%s saved", entity), appctx.NotifySuccess)
	logger.Info(ctx, "record saved", "entity", entity, "id", savedID)
	if e.OnSaved != nil {
		e.OnSaved(entity, savedID)
	}
	return savedID, nil
}

// validate enforces required fields before the request goes out.
func (e *Engine) validate(body map[string]any) error {
	e.mu.Lock()
	form := e.form
	e.mu.Unlock()
	for _, f := range form.Fields() {
		if !f.Required {
			continue
		}
		v, ok := body[f.Name]
		if !ok || v == nil || v == "" {
			return apperror.NewValidation(fmt.Sprintf("%s is required", f.DisplayLabel()))
		}
	}
	return nil
}

// Snapshot returns the current render-ready view.
func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	view := View{
		Entity:  e.entity,
		Values:  make(map[string]any, len(e.values)),
		Options: e.options,
	}
	for k, v := range e.values {
		view.Values[k] = v
	}
	if e.form != nil {
		view.Name = e.form.Name
		view.Sections = e.form.Layout
	}
	return view
}

// Options returns the resolved option set for one relation field.
func (e *Engine) Options(field string) []schema.RelationOption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.options[field]
}
