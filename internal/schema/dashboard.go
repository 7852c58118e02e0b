package schema

import "encoding/json"

// WidgetType classifies dashboard widgets.
type WidgetType string

const (
	WidgetStat     WidgetType = "stat"
	WidgetBar      WidgetType = "bar"
	WidgetPie      WidgetType = "pie"
	WidgetLine     WidgetType = "line"
	WidgetDoughnut WidgetType = "doughnut"
)

// Chart reports whether the widget carries a {label, value} series.
func (t WidgetType) Chart() bool {
	switch t {
	case WidgetBar, WidgetPie, WidgetLine, WidgetDoughnut:
		return true
	default:
		return false
	}
}

// Known reports whether the type belongs to the closed set.
func (t WidgetType) Known() bool {
	return t == WidgetStat || t.Chart()
}

// Widget is one dashboard widget as emitted by the server. Value is a scalar
// for stat widgets and a [{label, value}] series for chart widgets.
type Widget struct {
	Name  string          `json:"name"`
	Type  WidgetType      `json:"type"`
	Label string          `json:"label"`
	Value json.RawMessage `json:"value,omitempty"`
	Icon  string          `json:"icon,omitempty"`
}

// SeriesPoint is one element of a chart widget's value series.
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series decodes the widget value as a chart series.
func (w Widget) Series() ([]SeriesPoint, error) {
	var pts []SeriesPoint
	if len(w.Value) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(w.Value, &pts); err != nil {
		return nil, err
	}
	return pts, nil
}

// Scalar decodes the widget value as a display string for stat widgets.
func (w Widget) Scalar() string {
	if len(w.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(w.Value, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(w.Value, &n); err == nil {
		return n.String()
	}
	return string(w.Value)
}

// DashboardSchema is the widget-grid description served for one dashboard.
type DashboardSchema struct {
	Name    string   `json:"name"`
	Title   string   `json:"title,omitempty"`
	Layout  Layout   `json:"layout"`
	Widgets []Widget `json:"widgets"`
}
