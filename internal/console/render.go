// Package console is the text presentation collaborator: it renders the
// engines' view models to the terminal. It owns no fetch or dispatch logic.
package console

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"metaview/internal/core/appctx"
	"metaview/internal/dashboard"
	"metaview/internal/form"
	"metaview/internal/page"
	"metaview/internal/schema"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
)

// Notify renders a transient notification line. It implements
// appctx.Notifier.
type Notify struct{}

// Notify implements appctx.Notifier.
func (Notify) Notify(message string, kind appctx.NotifyKind) {
	switch kind {
	case appctx.NotifySuccess:
		fmt.Println(successStyle.Render("✓ " + message))
	case appctx.NotifyError:
		fmt.Println(errorStyle.Render("✗ " + message))
	case appctx.NotifyWarning:
		fmt.Println(warnStyle.Render("! " + message))
	default:
		fmt.Println(faintStyle.Render("· " + message))
	}
}

// Menu renders the navigation arena as an indented tree.
func Menu(arena *schema.MenuArena) string {
	var b strings.Builder
	arena.Walk(func(idx int, node schema.MenuNode) {
		indent := strings.Repeat("  ", node.Depth)
		label := node.Label
		if node.Depth == 0 {
			label = headerStyle.Render(label)
		}
		b.WriteString(indent + label)
		if node.Entity != "" {
			b.WriteString(faintStyle.Render("  (" + node.Entity + ")"))
		}
		b.WriteString("\n")
	})
	return b.String()
}

// Page renders a page view: title, page actions, and the data table with
// typed cell formatting.
func Page(v page.View) string {
	var b strings.Builder

	title := v.Title
	if title == "" {
		title = v.Entity
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	switch v.State {
	case page.StateConfigError:
		b.WriteString(errorStyle.Render("page not available: "+v.ConfigError) + "\n")
		return b.String()
	case page.StateEmpty:
		return b.String()
	}

	if len(v.PageActions) > 0 {
		labels := make([]string, 0, len(v.PageActions))
		for _, a := range v.PageActions {
			labels = append(labels, "["+a.Label+"]")
		}
		b.WriteString(strings.Join(labels, " ") + "\n")
	}

	if len(v.Columns) > 0 {
		b.WriteString(table(v.Columns, v.Rows))
	}
	return b.String()
}

func table(columns []schema.Column, rows []map[string]any) string {
	widths := make([]int, len(columns))
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.DisplayLabel()
		widths[i] = len(header[i])
	}

	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i, c := range columns {
			cell := Cell(c, row[c.Key])
			cells[r][i] = cell
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range header {
		b.WriteString(headerStyle.Render(pad(h, widths[i])) + "  ")
	}
	b.WriteString("\n")
	for _, row := range cells {
		for i, cell := range row {
			b.WriteString(pad(cell, widths[i]) + "  ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Cell formats one table cell per its column type: currency cells render a
// normalized decimal, status cells append their variant.
func Cell(c schema.Column, v any) string {
	if v == nil {
		return ""
	}
	switch c.Type {
	case schema.ColumnCurrency:
		d, err := decimal.NewFromString(fmt.Sprint(v))
		if err != nil {
			return fmt.Sprint(v)
		}
		return d.StringFixed(2)
	case schema.ColumnStatus:
		s := fmt.Sprint(v)
		if variant, ok := c.VariantMap[s]; ok {
			return s + " (" + variant + ")"
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}

// Form renders a form view: tabbed sections, fields with their widget kind,
// bound values, and relation options.
func Form(v form.View) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(v.Name) + "\n")

	for _, sec := range v.Sections {
		b.WriteString(headerStyle.Render(sec.Title) + "\n")
		for _, f := range sec.Fields {
			line := "  " + f.DisplayLabel()
			if f.Required {
				line += "*"
			}
			line += faintStyle.Render("  <"+string(f.Widget)+">") + " "
			if val, ok := v.Values[f.Name]; ok {
				line += fmt.Sprint(val)
			}
			if !f.Widget.Known() {
				line += errorStyle.Render("  [unsupported widget]")
			}
			b.WriteString(line + "\n")

			if opts := v.Options[f.Name]; len(opts) > 0 {
				labels := make([]string, 0, len(opts))
				for _, o := range opts {
					labels = append(labels, fmt.Sprintf("%v=%s", o.Value, o.Label))
				}
				sort.Strings(labels)
				b.WriteString(faintStyle.Render("    options: "+strings.Join(labels, ", ")) + "\n")
			}
		}
	}
	return b.String()
}

// Dashboard renders a dashboard view: stat boxes and textual chart series.
func Dashboard(v *dashboard.View) string {
	var b strings.Builder
	title := v.Title
	if title == "" {
		title = v.Name
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	var stats []string
	for _, w := range v.Widgets {
		switch {
		case w.Placeholder != "":
			b.WriteString(warnStyle.Render(fmt.Sprintf("%s: %s", w.Label, w.Placeholder)) + "\n")
		case w.Scalar != "":
			stats = append(stats, statStyle.Render(w.Label+"\n"+w.Scalar))
		case w.Axis != nil:
			b.WriteString(headerStyle.Render(w.Label) + faintStyle.Render("  ("+string(w.Type)+")") + "\n")
			for i, label := range w.Axis.Labels {
				b.WriteString(fmt.Sprintf("  %-20s %v\n", label, w.Axis.Values[i]))
			}
		}
	}
	if len(stats) > 0 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, stats...) + "\n")
	}
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
