// Package schema defines the wire types the server's UI compiler produces
// (pages, forms, dashboards, navigation) and the classification rules the
// engines apply to them. The package is entity-agnostic: nothing here knows
// which fields, widgets, or actions a concrete backend declares.
package schema

// Layout selects the page sub-renderer.
type Layout string

const (
	LayoutTable Layout = "TableView"
	LayoutGrid  Layout = "Grid"
	LayoutEmpty Layout = "Empty"
)

// PageSchema is the declarative description of a list/grid view for one
// entity. A Grid layout implies widget-only rendering: no tabular data fetch.
type PageSchema struct {
	Entity  string             `json:"entity"`
	Title   string             `json:"title,omitempty"`
	Layout  Layout             `json:"layout"`
	Columns []Column           `json:"columns,omitempty"`
	Actions []ActionDescriptor `json:"actions,omitempty"`
	Widgets []Widget           `json:"widgets,omitempty"`

	// Error carries the server's {error} payload when the page is not
	// available; the shell renders a "not available" state from it.
	Error string `json:"error,omitempty"`
}

// ColumnType distinguishes columns needing special rendering.
type ColumnType string

const (
	ColumnPlain    ColumnType = ""
	ColumnStatus   ColumnType = "status"
	ColumnCurrency ColumnType = "currency"
)

// Column describes one table column of a TableView page.
type Column struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Type  ColumnType `json:"type,omitempty"`

	// VariantMap maps a status cell value to a visual variant name.
	VariantMap map[string]string `json:"variant_map,omitempty"`
}

// DisplayLabel returns the column label, humanizing the key when the server
// omitted a label.
func (c Column) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return TitleCase(c.Key)
}
