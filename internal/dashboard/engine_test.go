package dashboard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaview/internal/cache"
	"metaview/internal/schema"
	"metaview/internal/session"
	"metaview/internal/stubserver"
	"metaview/internal/transport"
)

func mainDashboard() *schema.DashboardSchema {
	return &schema.DashboardSchema{
		Name:   "Main",
		Title:  "Overview",
		Layout: schema.LayoutGrid,
		Widgets: []schema.Widget{
			{Name: "revenue", Type: schema.WidgetStat, Label: "Revenue", Value: json.RawMessage(`"12,340.00"`), Icon: "coins"},
			{Name: "open", Type: schema.WidgetStat, Label: "Open Invoices", Value: json.RawMessage(`17`)},
			{Name: "by_month", Type: schema.WidgetBar, Label: "By Month",
				Value: json.RawMessage(`[{"label":"Jul","value":4},{"label":"Aug","value":9}]`)},
			{Name: "broken", Type: schema.WidgetPie, Label: "Broken", Value: json.RawMessage(`{"not":"a series"}`)},
			{Name: "gauge", Type: schema.WidgetType("gauge"), Label: "Gauge"},
		},
	}
}

func newDashEngine(t *testing.T, fx stubserver.Fixtures) (*Engine, *stubserver.Server) {
	t.Helper()
	srv := stubserver.New(fx)
	t.Cleanup(srv.Close)
	client, err := transport.New(transport.Config{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	return New(cache.New(client, session.NewMemory())), srv
}

func TestLoadClassifiesWidgets(t *testing.T) {
	e, _ := newDashEngine(t, stubserver.Fixtures{
		Dashboards: map[string]*schema.DashboardSchema{"Main": mainDashboard()},
	})

	view, err := e.Load(context.Background(), "Main")
	require.NoError(t, err)
	assert.Equal(t, "Overview", view.Title)
	require.Len(t, view.Widgets, 5)

	text := view.Widgets[0]
	assert.Equal(t, "12,340.00", text.Scalar)
	assert.Nil(t, text.Axis)

	numeric := view.Widgets[1]
	assert.Equal(t, "17", numeric.Scalar)

	chart := view.Widgets[2]
	require.NotNil(t, chart.Axis)
	assert.Equal(t, []string{"Jul", "Aug"}, chart.Axis.Labels)
	assert.Equal(t, []float64{4, 9}, chart.Axis.Values)
	assert.Empty(t, chart.Placeholder)

	malformed := view.Widgets[3]
	assert.Nil(t, malformed.Axis)
	assert.Equal(t, "invalid pie data", malformed.Placeholder)

	unknown := view.Widgets[4]
	assert.Equal(t, `unsupported widget type "gauge"`, unknown.Placeholder)
}

func TestLoadUsesConditionalCache(t *testing.T) {
	e, srv := newDashEngine(t, stubserver.Fixtures{
		Dashboards:     map[string]*schema.DashboardSchema{"Main": mainDashboard()},
		DashboardETags: map[string]string{"Main": `"v1"`},
	})
	ctx := context.Background()

	first, err := e.Load(ctx, "Main")
	require.NoError(t, err)
	second, err := e.Load(ctx, "Main")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"GET /api/ui/dashboard/Main", "GET /api/ui/dashboard/Main"}, srv.Requests())
}

func TestLoadUnknownDashboard(t *testing.T) {
	e, _ := newDashEngine(t, stubserver.Fixtures{})

	_, err := e.Load(context.Background(), "Nope")
	require.Error(t, err)
}

func TestProjectEmptyDashboard(t *testing.T) {
	view := Project(context.Background(), &schema.DashboardSchema{Name: "Blank", Layout: schema.LayoutGrid})
	assert.Equal(t, "Blank", view.Name)
	assert.Empty(t, view.Widgets)
}
