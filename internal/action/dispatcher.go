// Package action classifies action descriptors (navigate / mutate /
// mutate-with-confirmation), performs URL templating, and executes the
// corresponding HTTP call with unified error and success feedback.
package action

import (
	"context"
	"encoding/json"
	"strings"

	"metaview/internal/core/apperror"
	"metaview/internal/core/appctx"
	"metaview/internal/rules"
	"metaview/internal/schema"
	"metaview/internal/transport"
	"metaview/pkg/logger"
)

// Navigator receives the navigation signals the dispatcher emits instead of
// HTTP calls. Pure navigation beyond create/edit is the router's problem,
// not the dispatcher's.
type Navigator interface {
	NavigateCreate(entity string)
	NavigateEdit(entity string, id any)
}

// Confirmer gates dangerous mutations behind explicit user confirmation.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Result describes what dispatching an action did.
type Result struct {
	// Executed is true when an HTTP mutation was issued and succeeded;
	// the caller must re-fetch its list data.
	Executed bool
	// Navigated is true when a create/edit navigation signal was emitted.
	Navigated bool
	// Cancelled is true when the user declined the confirmation prompt.
	Cancelled bool
}

// Dispatcher executes classified actions.
type Dispatcher struct {
	app     *appctx.App
	client  *transport.Client
	rules   *rules.Engine
	nav     Navigator
	confirm Confirmer
}

// New creates a Dispatcher. nav and confirm may be nil: navigation signals
// are then dropped and every dangerous mutation is declined.
func New(app *appctx.App, client *transport.Client, ruleEngine *rules.Engine, nav Navigator, confirm Confirmer) *Dispatcher {
	return &Dispatcher{app: app, client: client, rules: ruleEngine, nav: nav, confirm: confirm}
}

// Visible filters actions by their visibility rules for the given row.
func (d *Dispatcher) Visible(ctx context.Context, actions []schema.ActionDescriptor, row map[string]any) []schema.ActionDescriptor {
	if d.rules == nil {
		return actions
	}
	return d.rules.Filter(ctx, actions, row)
}

// Handle dispatches one user-triggered action against an entity. For
// row-scoped actions the row must supply a non-nil identifier; absence is a
// guarded failure surfaced to the user with no request issued. Dangerous
// mutations are deferred behind the Confirmer; non-danger mutations execute
// immediately. Create/edit path conventions emit navigation signals.
func (d *Dispatcher) Handle(ctx context.Context, entity string, a schema.ActionDescriptor, row map[string]any) (Result, error) {
	var id any
	if a.RowScoped() {
		if row == nil {
			return d.guardFailure(a)
		}
		id = schema.RecordID(row)
		if id == nil || id == "" {
			return d.guardFailure(a)
		}
	}
	target := a.ExpandURL(id)

	switch a.Classify() {
	case schema.ActionMutateConfirm:
		prompt := a.Label
		if id != nil {
			prompt = prompt + " " + entity + " " + strings.TrimPrefix(target, "/")
		}
		if d.confirm == nil || !d.confirm.Confirm(prompt) {
			logger.Info(ctx, "action cancelled", "action", a.Label, "entity", entity)
			return Result{Cancelled: true}, nil
		}
		if err := d.Execute(ctx, a, target, row); err != nil {
			return Result{}, err
		}
		return Result{Executed: true}, nil

	case schema.ActionMutate:
		if err := d.Execute(ctx, a, target, row); err != nil {
			return Result{}, err
		}
		return Result{Executed: true}, nil

	case schema.ActionNavigateCreate:
		if d.nav != nil {
			d.nav.NavigateCreate(entity)
		}
		return Result{Navigated: true}, nil

	case schema.ActionNavigateEdit:
		if d.nav != nil {
			d.nav.NavigateEdit(entity, id)
		}
		return Result{Navigated: true}, nil

	default:
		// Pure navigation is left to the surrounding router.
		return Result{}, nil
	}
}

func (d *Dispatcher) guardFailure(a schema.ActionDescriptor) (Result, error) {
	err := apperror.NewMissingIdentifier(a.Label)
	d.app.Notify(err.Message, appctx.NotifyError)
	return Result{}, err
}

// actionResponse is the server's success envelope for custom actions.
type actionResponse struct {
	Message string `json:"message"`
}

// Execute issues the action's HTTP call with the row serialized as the body.
// Success surfaces the server-provided message (else "<label> successful");
// failure surfaces the server error detail or the HTTP status text. The
// caller owns the subsequent data re-fetch.
func (d *Dispatcher) Execute(ctx context.Context, a schema.ActionDescriptor, target string, row map[string]any) error {
	var body any
	if row != nil {
		body = row
	}

	resp, err := d.client.Do(ctx, strings.ToUpper(a.Method), target, body, nil)
	if err != nil {
		// Transport failure or terminal 401; both already classified.
		d.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := transport.DecodeError(resp)
		d.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
		logger.Warn(ctx, "action failed", "action", a.Label, "target", target, "status", resp.StatusCode)
		return err
	}

	var payload actionResponse
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	message := payload.Message
	if message == "" {
		message = a.Label + " successful"
	}
	d.app.Notify(message, appctx.NotifySuccess)
	logger.Info(ctx, "action executed", "action", a.Label, "target", target)
	return nil
}
