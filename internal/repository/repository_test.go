package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID        int64
	Name      string
	Price     float64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

var widgetColumns = []string{"id", "name", "price", "created_at", "updated_at", "deleted_at"}

func widgetSchema() Schema[widget] {
	return Schema[widget]{
		Table:    "widgets",
		IDColumn: "id",
		Columns:  widgetColumns,
		Fields: func(w *widget) []any {
			return []any{&w.ID, &w.Name, &w.Price, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt}
		},
		InsertColumns: []string{"name", "price"},
		InsertValues: func(w widget) []any {
			return []any{w.Name, w.Price}
		},
		UpdatedAtColumn:  "updated_at",
		SoftDeleteColumn: "deleted_at",
	}
}

func widgetRow(id int64, name string, price float64) []any {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []any{id, name, price, now, now, (*time.Time)(nil)}
}

func newWidgetRepo(t *testing.T, q *fakeQuerier) *Repository[widget, int64] {
	t.Helper()
	repo, err := NewReadOnly[widget, int64](widgetSchema(), q)
	require.NoError(t, err)
	return repo
}

func TestSchemaValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schema[widget])
	}{
		{"missing table", func(s *Schema[widget]) { s.Table = "" }},
		{"missing id column", func(s *Schema[widget]) { s.IDColumn = "" }},
		{"missing columns", func(s *Schema[widget]) { s.Columns = nil }},
		{"missing field extractor", func(s *Schema[widget]) { s.Fields = nil }},
		{"field count mismatch", func(s *Schema[widget]) {
			s.Fields = func(w *widget) []any { return []any{&w.ID, &w.Name} }
		}},
		{"missing insert extractor", func(s *Schema[widget]) { s.InsertValues = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := widgetSchema()
			tt.mutate(&schema)
			_, err := NewReadOnly[widget, int64](schema, &fakeQuerier{})
			assert.Error(t, err)
		})
	}
}

func TestCreate(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns, widgetRow(7, "anvil", 9.5))}}
	repo := newWidgetRepo(t, q)

	created, err := repo.Create(context.Background(), widget{Name: "anvil", Price: 9.5})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO widgets (name, price) VALUES ($1, $2) RETURNING id, name, price, created_at, updated_at, deleted_at",
		q.lastSQL())
	assert.Equal(t, []any{"anvil", 9.5}, q.lastArgs())
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "anvil", created.Name)
}

func TestCreateMany(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{
		newRows(widgetColumns, widgetRow(1, "a", 1)),
		newRows(widgetColumns, widgetRow(2, "b", 2)),
	}}
	repo := newWidgetRepo(t, q)

	created, err := repo.CreateMany(context.Background(), []widget{
		{Name: "a", Price: 1},
		{Name: "b", Price: 2},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, int64(1), created[0].ID)
	assert.Equal(t, int64(2), created[1].ID)
	assert.Len(t, q.gotSQL, 2)
}

func TestGetByID(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns, widgetRow(42, "anvil", 9.5))}}
	repo := newWidgetRepo(t, q)

	got, err := repo.GetByID(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE id = $1 ORDER BY id LIMIT 1",
		q.lastSQL())
	assert.Equal(t, []any{int64(42)}, q.lastArgs())
	assert.Equal(t, int64(42), got.ID)
}

func TestGetByOrdersByPrimaryKey(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns, widgetRow(1, "anvil", 9.5))}}
	repo := newWidgetRepo(t, q)

	// multiple matches resolve to the lowest primary key, not an arbitrary row
	_, err := repo.GetBy(context.Background(), "name", "anvil")
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE name = $1 ORDER BY id LIMIT 1",
		q.lastSQL())
}

func TestGetByIDNoRows(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns)}}
	repo := newWidgetRepo(t, q)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestGetByUnknownColumn(t *testing.T) {
	repo := newWidgetRepo(t, &fakeQuerier{})

	_, err := repo.GetBy(context.Background(), "name; DROP TABLE widgets", "x")

	var unknown *UnknownColumnError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "widgets", unknown.Table)
}

func TestFilterPagination(t *testing.T) {
	tests := []struct {
		name    string
		page    Page
		wantSQL string
	}{
		{
			name:    "no bounds",
			page:    Page{},
			wantSQL: "SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets ORDER BY id",
		},
		{
			name:    "limit only",
			page:    Page{Limit: 10},
			wantSQL: "SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets ORDER BY id LIMIT 10",
		},
		{
			name:    "limit and offset",
			page:    Page{Limit: 10, Offset: 20},
			wantSQL: "SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets ORDER BY id LIMIT 10 OFFSET 20",
		},
		{
			name:    "negative bounds mean unset",
			page:    Page{Limit: -1, Offset: -5},
			wantSQL: "SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets ORDER BY id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns)}}
			repo := newWidgetRepo(t, q)

			_, err := repo.GetAll(context.Background(), tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q.lastSQL())
		})
	}
}

func TestFilterConditions(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns, widgetRow(1, "anvil", 9.5))}}
	repo := newWidgetRepo(t, q)

	got, err := repo.Filter(context.Background(), Filters{Eq("name", "anvil"), Eq("price", 9.5)}, Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	// arguments bind in condition order
	assert.Equal(t,
		"SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE name = $1 AND price = $2 ORDER BY id",
		q.lastSQL())
	assert.Equal(t, []any{"anvil", 9.5}, q.lastArgs())
}

func TestFilterNilMeansIsNull(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns)}}
	repo := newWidgetRepo(t, q)

	_, err := repo.Filter(context.Background(), Filters{Eq("deleted_at", nil)}, Page{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE deleted_at IS NULL ORDER BY id",
		q.lastSQL())
	assert.Empty(t, q.lastArgs())
}

func TestFilterRange(t *testing.T) {
	tests := []struct {
		name     string
		cond     Condition
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "both bounds",
			cond:     Range("price", 1.0, 5.0),
			wantSQL:  "SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE price >= $1 AND price <= $2 ORDER BY id",
			wantArgs: []any{1.0, 5.0},
		},
		{
			name:     "lower bound only",
			cond:     Range("price", 1.0, nil),
			wantSQL:  "SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE price >= $1 ORDER BY id",
			wantArgs: []any{1.0},
		},
		{
			name:     "upper bound only",
			cond:     Range("price", nil, 5.0),
			wantSQL:  "SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE price <= $1 ORDER BY id",
			wantArgs: []any{5.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns)}}
			repo := newWidgetRepo(t, q)

			_, err := repo.Filter(context.Background(), Filters{tt.cond}, Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q.lastSQL())
			assert.Equal(t, tt.wantArgs, q.lastArgs())
		})
	}
}

func TestFilterIn(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns)}}
	repo := newWidgetRepo(t, q)

	_, err := repo.Filter(context.Background(), Filters{In("id", []int64{1, 3, 5})}, Page{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE id = ANY($1) ORDER BY id",
		q.lastSQL())
	assert.Equal(t, []any{[]int64{1, 3, 5}}, q.lastArgs())
}

func TestFilterEmptyRange(t *testing.T) {
	repo := newWidgetRepo(t, &fakeQuerier{})

	_, err := repo.Filter(context.Background(), Filters{Range("price", nil, nil)}, Page{})
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestFilterMatch(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns)}}
	repo := newWidgetRepo(t, q)

	_, err := repo.Filter(context.Background(), Filters{Match("name", "%anvil%")}, Page{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, name, price, created_at, updated_at, deleted_at FROM widgets WHERE name ILIKE $1 ORDER BY id",
		q.lastSQL())
	assert.Equal(t, []any{"%anvil%"}, q.lastArgs())
}

func TestUpdate(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns, widgetRow(5, "renamed", 3))}}
	repo := newWidgetRepo(t, q)

	got, err := repo.Update(context.Background(), 5, Changes{"name": "renamed"})
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE widgets SET name = $1, updated_at = now() WHERE id = $2 RETURNING id, name, price, created_at, updated_at, deleted_at",
		q.lastSQL())
	assert.Equal(t, []any{"renamed", int64(5)}, q.lastArgs())
	assert.Equal(t, "renamed", got.Name)
}

func TestUpdateEmptyChanges(t *testing.T) {
	repo := newWidgetRepo(t, &fakeQuerier{})

	_, err := repo.Update(context.Background(), 5, Changes{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = repo.UpdateMany(context.Background(), Filters{Eq("name", "x")}, nil)
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestUpdateMissingRow(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{newRows(widgetColumns)}}
	repo := newWidgetRepo(t, q)

	_, err := repo.Update(context.Background(), 404, Changes{"name": "x"})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestUpdateMany(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 3")}}
	repo := newWidgetRepo(t, q)

	affected, err := repo.UpdateMany(context.Background(), Filters{Eq("price", 0.0)}, Changes{"price": 1.0})
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.Equal(t,
		"UPDATE widgets SET price = $1, updated_at = now() WHERE price = $2",
		q.lastSQL())
	assert.Equal(t, []any{1.0, 0.0}, q.lastArgs())
}

func TestUpdateManyByIDSet(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 2")}}
	repo := newWidgetRepo(t, q)

	affected, err := repo.UpdateMany(context.Background(), Filters{In("id", []int64{1, 3})}, Changes{"price": 2.0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.Equal(t,
		"UPDATE widgets SET price = $1, updated_at = now() WHERE id = ANY($2)",
		q.lastSQL())
	assert.Equal(t, []any{2.0, []int64{1, 3}}, q.lastArgs())
}

func TestDelete(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 1")}}
	repo := newWidgetRepo(t, q)

	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.Equal(t, "DELETE FROM widgets WHERE id = $1", q.lastSQL())
}

func TestDeleteMissingRow(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 0")}}
	repo := newWidgetRepo(t, q)

	err := repo.Delete(context.Background(), 404)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestDeleteMany(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 4")}}
	repo := newWidgetRepo(t, q)

	deleted, err := repo.DeleteMany(context.Background(), Filters{Eq("name", "anvil")})
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.Equal(t, "DELETE FROM widgets WHERE name = $1", q.lastSQL())
}

func TestDeleteManyByIDSet(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 3")}}
	repo := newWidgetRepo(t, q)

	// the identifier set binds as one array argument, not one equality each
	deleted, err := repo.DeleteMany(context.Background(), Filters{In("id", []int64{1, 3, 5})})
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, "DELETE FROM widgets WHERE id = ANY($1)", q.lastSQL())
	assert.Equal(t, []any{[]int64{1, 3, 5}}, q.lastArgs())
}

func TestSoftDelete(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 1")}}
	repo := newWidgetRepo(t, q)

	require.NoError(t, repo.SoftDelete(context.Background(), 5))
	assert.Equal(t,
		"UPDATE widgets SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL",
		q.lastSQL())
}

func TestSoftDeleteUnsupported(t *testing.T) {
	schema := widgetSchema()
	schema.SoftDeleteColumn = ""
	repo, err := NewReadOnly[widget, int64](schema, &fakeQuerier{})
	require.NoError(t, err)

	err = repo.SoftDelete(context.Background(), 5)
	assert.ErrorIs(t, err, ErrSoftDeleteUnsupported)
}

func TestExistsAndCount(t *testing.T) {
	q := &fakeQuerier{rows: []*fakeRows{
		newRows([]string{"exists"}, []any{true}),
		newRows([]string{"count"}, []any{int64(12)}),
	}}
	repo := newWidgetRepo(t, q)

	exists, err := repo.Exists(context.Background(), Filters{Eq("name", "anvil")})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "SELECT EXISTS (SELECT 1 FROM widgets WHERE name = $1)", q.gotSQL[0])

	count, err := repo.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
	assert.Equal(t, "SELECT count(*) FROM widgets", q.gotSQL[1])
}

func TestCommitWithoutSession(t *testing.T) {
	repo := newWidgetRepo(t, &fakeQuerier{})

	assert.ErrorIs(t, repo.Commit(context.Background()), ErrNoSession)
	assert.ErrorIs(t, repo.Rollback(context.Background()), ErrNoSession)
}
