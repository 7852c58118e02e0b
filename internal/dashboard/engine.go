// Package dashboard renders a widget-grid schema into view models: stat
// widgets carry a scalar, chart widgets transform their {label, value}
// series into an axis structure, and unsupported types render a visible
// placeholder rather than failing silently.
package dashboard

import (
	"context"
	"fmt"

	"metaview/internal/cache"
	"metaview/internal/schema"
	"metaview/pkg/logger"
)

// Axis is the chart-ready projection of a widget series.
type Axis struct {
	Labels []string
	Values []float64
}

// WidgetView is the render-ready projection of one widget.
type WidgetView struct {
	Name  string
	Type  schema.WidgetType
	Label string
	Icon  string

	// Scalar is set for stat widgets.
	Scalar string
	// Axis is set for chart widgets.
	Axis *Axis
	// Placeholder is set for unsupported widget types.
	Placeholder string
}

// View is the render-ready projection of one dashboard.
type View struct {
	Name    string
	Title   string
	Widgets []WidgetView
}

// Engine loads dashboards through the conditional schema cache.
type Engine struct {
	schemas *cache.SchemaCache
}

// New creates an Engine.
func New(schemas *cache.SchemaCache) *Engine {
	return &Engine{schemas: schemas}
}

// Load fetches (conditionally) and classifies the named dashboard.
func (e *Engine) Load(ctx context.Context, name string) (*View, error) {
	dash, err := e.schemas.Dashboard(ctx, name)
	if err != nil {
		return nil, err
	}
	return Project(ctx, dash), nil
}

// Project classifies a dashboard schema into its view model.
func Project(ctx context.Context, dash *schema.DashboardSchema) *View {
	view := &View{Name: dash.Name, Title: dash.Title}
	for _, w := range dash.Widgets {
		view.Widgets = append(view.Widgets, classify(ctx, w))
	}
	return view
}

func classify(ctx context.Context, w schema.Widget) WidgetView {
	view := WidgetView{Name: w.Name, Type: w.Type, Label: w.Label, Icon: w.Icon}

	switch {
	case w.Type == schema.WidgetStat:
		view.Scalar = w.Scalar()

	case w.Type.Chart():
		series, err := w.Series()
		if err != nil {
			logger.Warn(ctx, "widget series is malformed", "widget", w.Name, "error", err)
			view.Placeholder = fmt.Sprintf("invalid %s data", w.Type)
			return view
		}
		axis := &Axis{
			Labels: make([]string, 0, len(series)),
			Values: make([]float64, 0, len(series)),
		}
		for _, p := range series {
			axis.Labels = append(axis.Labels, p.Label)
			axis.Values = append(axis.Values, p.Value)
		}
		view.Axis = axis

	default:
		view.Placeholder = fmt.Sprintf("unsupported widget type %q", w.Type)
	}
	return view
}
