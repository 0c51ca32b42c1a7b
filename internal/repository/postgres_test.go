package repository

import (
	"context"
	"os"
	"testing"

	"recipe-share-backend/internal/apperror"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "collection only",
			query:    Query{},
			wantSQL:  "SELECT id, fields FROM documents WHERE collection = $1 ORDER BY id",
			wantArgs: []any{"recipes"},
		},
		{
			name: "filters and order",
			query: Query{
				Filters: []Filter{
					Equal("createdBy", "u1"),
					ArrayContains("categories", "dinner"),
				},
				OrderBy:   "createdAt",
				Direction: Desc,
			},
			wantSQL: "SELECT id, fields FROM documents WHERE collection = $1" +
				" AND fields @> $2::jsonb AND fields @> $3::jsonb" +
				" ORDER BY fields -> $4::text DESC, id",
			wantArgs: []any{"recipes", `{"createdBy":"u1"}`, `{"categories":["dinner"]}`, "createdAt"},
		},
		{
			name:     "boolean equality ascending",
			query:    Query{Filters: []Filter{Equal("imagePending", true)}, OrderBy: "name"},
			wantSQL:  "SELECT id, fields FROM documents WHERE collection = $1 AND fields @> $2::jsonb ORDER BY fields -> $3::text ASC, id",
			wantArgs: []any{"recipes", `{"imagePending":true}`, "name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildQuery("recipes", tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildQueryRejectsEmptyField(t *testing.T) {
	_, _, err := buildQuery("recipes", Query{Filters: []Filter{Equal("", "x")}})
	assert.Error(t, err)
}

// newPostgresStore connects to TEST_DATABASE_URL and skips when it is unset
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgresStore(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	collection := "test_" + xid.New().String()
	t.Cleanup(func() {
		store.db.Exec(context.Background(), "DELETE FROM documents WHERE collection = $1", collection)
	})

	t.Run("create and conflict", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, collection, "a", map[string]any{"createdBy": "u1", "createdAt": ServerTimestamp}))
		err := store.Create(ctx, collection, "a", map[string]any{"createdBy": "u2"})
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("update merges", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, collection, "a", map[string]any{"categories": []string{"dinner"}}))
		doc, err := store.Get(ctx, collection, "a")
		require.NoError(t, err)
		assert.Equal(t, "u1", doc.Fields["createdBy"])
		assert.Equal(t, []any{"dinner"}, doc.Fields["categories"])
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Update(ctx, collection, "missing", map[string]any{"x": 1})
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("query", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, collection, "b", map[string]any{"createdBy": "u1", "createdAt": ServerTimestamp}))
		require.NoError(t, store.Set(ctx, collection, "c", map[string]any{"createdBy": "u2", "categories": []string{"dinner"}}))

		docs, err := store.Query(ctx, collection, Query{
			Filters:   []Filter{Equal("createdBy", "u1")},
			OrderBy:   "createdAt",
			Direction: Desc,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, ids(docs))

		docs, err = store.Query(ctx, collection, Query{Filters: []Filter{ArrayContains("categories", "dinner")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(docs))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, collection, "a"))
		require.NoError(t, store.Delete(ctx, collection, "a"))
		_, err := store.Get(ctx, collection, "a")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
