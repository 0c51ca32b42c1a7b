package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentStore is the generic contract over named collections of schema-less documents.
// There are no transactions: every call stands alone.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Set overwrites the whole document, creating it if needed.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Create writes the document only if the id is unused.
	Create(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]*Document, error)
}

// Document is a stored record addressed by collection and id
type Document struct {
	ID     string
	Fields map[string]any
}

// DataTo decodes the document fields into v
func (d *Document) DataTo(v any) error {
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's clock when written as a top-level field value.
var ServerTimestamp = serverTimestamp{}

// TimestampLayout is fixed width so that lexical order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp encodes t the way the stores encode server timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FilterOp is a query predicate operator
type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
)

// Filter is one conjunct of a query predicate
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Equal matches documents whose field equals v.
func Equal(field string, v any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: v}
}

// ArrayContains matches documents whose array field has an element equal to v.
func ArrayContains(field string, v any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: v}
}

// Direction of ordering
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Query is a conjunction of filters with an optional single-field ordering
type Query struct {
	Filters   []Filter
	OrderBy   string
	Direction Direction
}

// normalizeFields resolves server timestamps and reduces values to their JSON form
// (string, float64, bool, nil, []any, map[string]any).
func normalizeFields(fields map[string]any, now time.Time) (map[string]any, error) {
	resolved := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			resolved[k] = Timestamp(now)
			continue
		}
		resolved[k] = v
	}

	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize fields: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize filter value: %w", err)
	}
	return out, nil
}

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("filter field is required")
		}
		if f.Op != OpEqual && f.Op != OpArrayContains {
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return nil
}
