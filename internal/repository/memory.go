package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"recipe-share-backend/internal/apperror"
)

// MemoryStore keeps documents in process memory. Used by tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		now:         time.Now,
	}
}

// SetClock replaces the clock used for server timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get retrieves a document by id
func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return nil, apperror.NotFound(collection, id)
	}
	return &Document{ID: id, Fields: copyFields(fields)}, nil
}

// Set overwrites a document
func (s *MemoryStore) Set(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized, err := normalizeFields(fields, s.now())
	if err != nil {
		return apperror.Store("failed to set document", err)
	}
	s.collection(collection)[id] = normalized
	return nil
}

// Create writes a document that must not exist yet
func (s *MemoryStore) Create(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[collection][id]; exists {
		return apperror.Conflict(collection, id)
	}
	normalized, err := normalizeFields(fields, s.now())
	if err != nil {
		return apperror.Store("failed to create document", err)
	}
	s.collection(collection)[id] = normalized
	return nil
}

// Update merges fields into an existing document
func (s *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[collection][id]
	if !ok {
		return apperror.NotFound(collection, id)
	}
	normalized, err := normalizeFields(fields, s.now())
	if err != nil {
		return apperror.Store("failed to update document", err)
	}
	merged := copyFields(existing)
	for k, v := range normalized {
		merged[k] = v
	}
	s.collections[collection][id] = merged
	return nil
}

// Delete removes a document; a missing id is not an error
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// Query returns the documents matching every filter, optionally ordered by one field
func (s *MemoryStore) Query(_ context.Context, collection string, q Query) ([]*Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, apperror.Store("invalid query", err)
	}

	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, apperror.Store("invalid query", err)
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}

	s.mu.RLock()
	var docs []*Document
	for id, fields := range s.collections[collection] {
		if matches(fields, filters) {
			docs = append(docs, &Document{ID: id, Fields: copyFields(fields)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
			if q.Direction == Desc {
				return c > 0
			}
			return c < 0
		})
	}
	return docs, nil
}

func (s *MemoryStore) collection(name string) map[string]map[string]any {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]map[string]any)
		s.collections[name] = c
	}
	return c
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(v, f.Value) {
				return false
			}
		case OpArrayContains:
			arr, ok := v.([]any)
			if !ok {
				return false
			}
			found := false
			for _, el := range arr {
				if reflect.DeepEqual(el, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// compareValues orders missing values after everything else, like NULLs in postgres.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// copyFields deep-copies a normalized field map
func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		arr := make([]any, len(t))
		for i, el := range t {
			arr[i] = copyValue(el)
		}
		return arr
	case map[string]any:
		return copyFields(t)
	default:
		return v
	}
}
