package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaview/internal/schema"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	return e
}

func TestVisibleWithoutRule(t *testing.T) {
	e := newEngine(t)
	assert.True(t, e.Visible(context.Background(), schema.ActionDescriptor{Label: "Delete"}, nil))
}

func TestVisibleEvaluatesRow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	approve := schema.ActionDescriptor{Label: "Approve", When: `row.status == "draft"`}

	assert.True(t, e.Visible(ctx, approve, map[string]any{"status": "draft"}))
	assert.False(t, e.Visible(ctx, approve, map[string]any{"status": "posted"}))
}

func TestBrokenRuleFailsOpen(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	assert.True(t, e.Visible(ctx, schema.ActionDescriptor{When: `row.status ==`}, nil), "compile error")
	assert.True(t, e.Visible(ctx, schema.ActionDescriptor{When: `row.status`}, map[string]any{"status": "x"}), "non-boolean result")
	assert.True(t, e.Visible(ctx, schema.ActionDescriptor{When: `row.missing.deep == 1`}, map[string]any{}), "eval error")
}

func TestFilterPreservesOrder(t *testing.T) {
	e := newEngine(t)
	actions := []schema.ActionDescriptor{
		{Label: "A"},
		{Label: "B", When: `row.n > 1`},
		{Label: "C", When: `row.n > 10`},
	}
	out := e.Filter(context.Background(), actions, map[string]any{"n": 5})
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Label)
	assert.Equal(t, "B", out[1].Label)
}
