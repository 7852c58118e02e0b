package relation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaview/internal/schema"
	"metaview/internal/transport"
)

func newResolver(t *testing.T, handler http.Handler) *Resolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := transport.New(transport.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return New(client)
}

func relationForm(fields ...schema.Field) *schema.FormSchema {
	return &schema.FormSchema{
		Name:   "test",
		Layout: []schema.Section{{Title: "General", Fields: fields}},
	}
}

func TestResolveConventionTarget(t *testing.T) {
	var paths []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "Acme"},
			{"id": 2, "title": "Untitled Corp"},
			{"id": 3},
		})
	})
	r := newResolver(t, handler)

	opts := r.Resolve(context.Background(), relationForm(
		schema.Field{Name: "customer_id", Widget: schema.WidgetRelationPicker},
	))

	// Target derived purely by stripping _id and capitalizing.
	require.Equal(t, []string{"/Customer"}, paths)
	require.Len(t, opts["customer_id"], 3)
	assert.Equal(t, "Acme", opts["customer_id"][0].Label)
	assert.Equal(t, "Untitled Corp", opts["customer_id"][1].Label)
	assert.Equal(t, "3", opts["customer_id"][2].Label)
}

func TestResolveExplicitTargetWins(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/Supplier", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{{"id": 9, "name": "Globex"}})
	})
	r := newResolver(t, handler)

	opts := r.Resolve(context.Background(), relationForm(
		schema.Field{Name: "vendor_id", Widget: schema.WidgetRelationPicker, TargetEntity: "Supplier"},
	))
	require.Len(t, opts["vendor_id"], 1)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolveDeduplicatesTargets(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "name": "Acme"}})
	})
	r := newResolver(t, handler)

	opts := r.Resolve(context.Background(), relationForm(
		schema.Field{Name: "customer_id", Widget: schema.WidgetRelationPicker},
		schema.Field{Name: "billing_customer_id", Widget: schema.WidgetRelationPicker, TargetEntity: "Customer"},
	))

	assert.Equal(t, int32(1), hits.Load(), "one fetch per distinct target")
	assert.Len(t, opts["customer_id"], 1)
	assert.Len(t, opts["billing_customer_id"], 1)
}

func TestResolvePartialFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Customer" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{"id": 5, "name": "Warehouse A"}})
	})
	r := newResolver(t, handler)

	opts := r.Resolve(context.Background(), relationForm(
		schema.Field{Name: "customer_id", Widget: schema.WidgetRelationPicker},
		schema.Field{Name: "warehouse_id", Widget: schema.WidgetRelationPicker},
	))

	// The failed target leaves its field without options; the other still
	// populates.
	assert.NotContains(t, opts, "customer_id")
	require.Len(t, opts["warehouse_id"], 1)
	assert.Equal(t, "Warehouse A", opts["warehouse_id"][0].Label)
}

func TestResolveSkipsNonRelationFields(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	r := newResolver(t, handler)

	opts := r.Resolve(context.Background(), relationForm(
		schema.Field{Name: "name", Widget: schema.WidgetTextInput},
		schema.Field{Name: "status_id", Widget: schema.WidgetSelect},
		schema.Field{Name: "note", Widget: schema.WidgetRelationPicker}, // no _id, no target
	))

	assert.Nil(t, opts)
	assert.Equal(t, int32(0), hits.Load())
}
