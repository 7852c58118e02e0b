package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationTarget(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"convention", Field{Name: "customer_id", Widget: WidgetRelationPicker}, "Customer"},
		{"explicit target wins", Field{Name: "vendor_ref", Widget: WidgetRelationPicker, TargetEntity: "Supplier"}, "Supplier"},
		{"explicit beats convention", Field{Name: "customer_id", Widget: WidgetRelationPicker, TargetEntity: "Account"}, "Account"},
		{"not a relation widget", Field{Name: "customer_id", Widget: WidgetTextInput}, ""},
		{"no suffix no target", Field{Name: "customer", Widget: WidgetRelationPicker}, ""},
		{"bare suffix", Field{Name: "_id", Widget: WidgetRelationPicker}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.field.RelationTarget())
		})
	}
}

func TestWidgetKindKnown(t *testing.T) {
	for _, w := range []WidgetKind{
		WidgetTextInput, WidgetNumberInput, WidgetTextArea, WidgetDatePicker,
		WidgetDateTimePicker, WidgetCurrencyInput, WidgetFileUpload,
		WidgetCheckbox, WidgetRelationPicker, WidgetSelect,
	} {
		assert.True(t, w.Known(), string(w))
	}
	assert.False(t, WidgetKind("HoloProjector").Known())
}

func TestFormFieldsFlattensSections(t *testing.T) {
	form := FormSchema{Layout: []Section{
		{Title: "General", Fields: []Field{{Name: "name"}, {Name: "amount"}}},
		{Title: "Details", Fields: []Field{{Name: "notes"}}},
	}}
	fields := form.Fields()
	assert.Len(t, fields, 3)
	assert.Equal(t, "notes", fields[2].Name)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Customer ID", TitleCase("customer_id"))
	assert.Equal(t, "Due Date", TitleCase("due_date"))
	assert.Equal(t, "Name", TitleCase("name"))
}

func TestRecordLabelPriority(t *testing.T) {
	assert.Equal(t, "Acme", RecordLabel(map[string]any{"id": 1, "name": "Acme", "title": "x"}))
	assert.Equal(t, "Q1 Report", RecordLabel(map[string]any{"id": 2, "title": "Q1 Report"}))
	assert.Equal(t, "3", RecordLabel(map[string]any{"id": 3}))
	assert.Equal(t, "4", RecordLabel(map[string]any{"id": 4, "name": ""}))
}
