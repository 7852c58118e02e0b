package schema

import "strings"

// WidgetKind is the closed set of input control types bindable to a field.
type WidgetKind string

const (
	WidgetTextInput      WidgetKind = "TextInput"
	WidgetNumberInput    WidgetKind = "NumberInput"
	WidgetTextArea       WidgetKind = "TextArea"
	WidgetDatePicker     WidgetKind = "DatePicker"
	WidgetDateTimePicker WidgetKind = "DateTimePicker"
	WidgetCurrencyInput  WidgetKind = "CurrencyInput"
	WidgetFileUpload     WidgetKind = "FileUpload"
	WidgetCheckbox       WidgetKind = "Checkbox"
	WidgetRelationPicker WidgetKind = "RelationPicker"
	WidgetSelect         WidgetKind = "Select"
)

// Known reports whether the kind belongs to the closed set. Unknown kinds
// render a visible placeholder; they are never silently dropped.
func (w WidgetKind) Known() bool {
	switch w {
	case WidgetTextInput, WidgetNumberInput, WidgetTextArea, WidgetDatePicker,
		WidgetDateTimePicker, WidgetCurrencyInput, WidgetFileUpload,
		WidgetCheckbox, WidgetRelationPicker, WidgetSelect:
		return true
	default:
		return false
	}
}

// RelationSuffix is the naming convention marking a foreign-key-shaped field.
const RelationSuffix = "_id"

// FormSchema is the declarative description of a data-entry view, organized
// into tabbed sections of fields.
type FormSchema struct {
	Name   string    `json:"name"`
	Entity string    `json:"entity,omitempty"`
	Layout []Section `json:"layout"`
}

// Section is one tab of a form.
type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Field describes one input of a form section. Every field name is a direct
// key of the bound record except composite widgets.
type Field struct {
	Name     string     `json:"name"`
	Label    string     `json:"label"`
	Widget   WidgetKind `json:"widget"`
	Required bool       `json:"required"`
	Options  []Option   `json:"options,omitempty"`

	// TargetEntity names the entity a RelationPicker references. When absent
	// the _id naming convention is the compatibility fallback.
	TargetEntity string `json:"target_entity,omitempty"`
}

// Option is a static select choice declared by the schema.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// RelationOption is a fetched label/value pair for a relation field.
type RelationOption struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// DisplayLabel returns the field label, humanizing the name when omitted.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return TitleCase(f.Name)
}

// RelationTarget derives the entity a relation field references. An explicit
// target wins; the _id-suffix convention (strip the suffix, capitalize the
// first letter) is the compatibility shim. The empty string means the field
// does not resolve to a target.
func (f Field) RelationTarget() string {
	if f.Widget != WidgetRelationPicker {
		return ""
	}
	if f.TargetEntity != "" {
		return f.TargetEntity
	}
	base, ok := strings.CutSuffix(f.Name, RelationSuffix)
	if !ok || base == "" {
		return ""
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

// Fields iterates all fields across all sections in declaration order.
func (s FormSchema) Fields() []Field {
	var out []Field
	for _, sec := range s.Layout {
		out = append(out, sec.Fields...)
	}
	return out
}
