package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipe-share-backend/internal/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore keeps every collection in one table with a JSONB fields column
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStore creates a new postgres-backed document store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate creates the documents table and its indexes if missing
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate documents schema: %w", err)
	}
	return nil
}

// Get retrieves a document by id
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	query := `
		SELECT fields
		FROM documents
		WHERE collection = $1 AND id = $2
	`
	var raw []byte
	err := s.db.QueryRow(ctx, query, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound(collection, id)
		}
		return nil, apperror.Store("failed to get document", err)
	}
	return decodeDocument(id, raw)
}

// Set overwrites a document
func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := s.encode(fields)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE
		SET fields = EXCLUDED.fields, updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, collection, id, data); err != nil {
		return apperror.Store("failed to set document", err)
	}
	return nil
}

// Create writes a document that must not exist yet
func (s *PostgresStore) Create(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := s.encode(fields)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING
	`
	result, err := s.db.Exec(ctx, query, collection, id, data)
	if err != nil {
		return apperror.Store("failed to create document", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.Conflict(collection, id)
	}
	return nil
}

// Update merges top-level fields into an existing document
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := s.encode(fields)
	if err != nil {
		return err
	}
	query := `
		UPDATE documents
		SET fields = fields || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`
	result, err := s.db.Exec(ctx, query, collection, id, data)
	if err != nil {
		return apperror.Store("failed to update document", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NotFound(collection, id)
	}
	return nil
}

// Delete removes a document; a missing id is not an error
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := s.db.Exec(ctx, query, collection, id); err != nil {
		return apperror.Store("failed to delete document", err)
	}
	return nil
}

// Query translates every filter into a JSONB containment test
func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	sql, args, err := buildQuery(collection, q)
	if err != nil {
		return nil, apperror.Store("invalid query", err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperror.Store("failed to query documents", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, apperror.Store("failed to scan document", err)
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, apperror.Store("error iterating documents", err)
	}
	return docs, nil
}

func buildQuery(collection string, q Query) (string, []any, error) {
	if err := validateQuery(q); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT id, fields FROM documents WHERE collection = $1")
	args := []any{collection}

	for _, f := range q.Filters {
		var containment map[string]any
		switch f.Op {
		case OpEqual:
			containment = map[string]any{f.Field: f.Value}
		case OpArrayContains:
			containment = map[string]any{f.Field: []any{f.Value}}
		}
		data, err := json.Marshal(containment)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode filter on %s: %w", f.Field, err)
		}
		args = append(args, string(data))
		fmt.Fprintf(&b, " AND fields @> $%d::jsonb", len(args))
	}

	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Direction == Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY fields -> $%d::text %s, id", len(args), dir)
	} else {
		b.WriteString(" ORDER BY id")
	}

	return b.String(), args, nil
}

func (s *PostgresStore) encode(fields map[string]any) (string, error) {
	normalized, err := normalizeFields(fields, s.now())
	if err != nil {
		return "", apperror.Store("failed to encode document", err)
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", apperror.Store("failed to encode document", err)
	}
	return string(data), nil
}

func decodeDocument(id string, raw []byte) (*Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperror.Store("failed to decode document", err)
	}
	return &Document{ID: id, Fields: fields}, nil
}
