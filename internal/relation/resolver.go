// Package relation discovers foreign-key-shaped fields in a form schema and
// fetches label/value option sets for them before the form becomes
// interactive.
package relation

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"metaview/internal/schema"
	"metaview/internal/transport"
	"metaview/pkg/logger"
)

// Resolver fetches relation option sets.
type Resolver struct {
	client *transport.Client
}

// New creates a Resolver.
func New(client *transport.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve produces field-name -> option-set for every relation field of the
// form. Each distinct target entity is fetched exactly once even when
// referenced by multiple fields, and all targets are fetched concurrently.
// A failed target leaves its fields without options (logged, never fatal):
// the other targets still populate.
func (r *Resolver) Resolve(ctx context.Context, form *schema.FormSchema) map[string][]schema.RelationOption {
	// Group relation field names by target entity.
	targets := make(map[string][]string)
	for _, field := range form.Fields() {
		target := field.RelationTarget()
		if target == "" {
			continue
		}
		targets[target] = append(targets[target], field.Name)
	}
	if len(targets) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		options = make(map[string][]schema.RelationOption)
	)

	g, ctx := errgroup.WithContext(ctx)
	for target, fields := range targets {
		g.Go(func() error {
			opts, err := r.fetchOptions(ctx, target)
			if err != nil {
				logger.Warn(ctx, "relation target fetch failed",
					"entity", target, "fields", fields, "error", err)
				return nil
			}
			mu.Lock()
			for _, name := range fields {
				options[name] = opts
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only gates completion.
	_ = g.Wait()

	return options
}

// fetchOptions lists the target entity and maps records to option pairs.
func (r *Resolver) fetchOptions(ctx context.Context, entity string) ([]schema.RelationOption, error) {
	var records []map[string]any
	if err := r.client.GetJSON(ctx, "/"+entity, &records); err != nil {
		return nil, err
	}

	opts := make([]schema.RelationOption, 0, len(records))
	for _, rec := range records {
		opts = append(opts, schema.RelationOption{
			Value: schema.RecordID(rec),
			Label: schema.RecordLabel(rec),
		})
	}
	logger.Debug(ctx, "relation options loaded", "entity", entity, "count", len(opts))
	return opts, nil
}
