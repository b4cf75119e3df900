package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"restmold/internal/database"
)

var (
	// ErrEmptyUpdate is returned when an update carries no changes.
	ErrEmptyUpdate = errors.New("update requires at least one change")
	// ErrSoftDeleteUnsupported is returned when SoftDelete is called on an
	// entity whose schema has no deletion timestamp column.
	ErrSoftDeleteUnsupported = errors.New("entity does not support soft deletion")
	// ErrNoSession is returned when Commit or Rollback is called on a
	// repository bound to the bare pool instead of a session.
	ErrNoSession = errors.New("repository is not bound to a session")
	// ErrEmptyRange is returned when a Range condition has neither bound.
	ErrEmptyRange = errors.New("range condition requires at least one bound")
)

// UnknownColumnError reports a filter or update keyed by a column the schema
// does not declare. Column names reach SQL verbatim, so unknown ones are
// rejected instead of interpolated.
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q for table %q", e.Column, e.Table)
}

// Schema describes how an entity type maps onto its table. Row scanning is
// explicit: Fields returns pointers into the entity aligned with Columns, so
// no struct tags or reflection are involved.
type Schema[T any] struct {
	// Table is the table name.
	Table string
	// IDColumn is the primary key column, usually "id".
	IDColumn string
	// Columns lists every column in select order, including the ID.
	Columns []string
	// Fields returns scan destinations for one entity, aligned with Columns.
	Fields func(entity *T) []any
	// InsertColumns lists the columns written on insert; generated columns
	// (serial IDs, default timestamps) are left out.
	InsertColumns []string
	// InsertValues extracts the entity's values aligned with InsertColumns.
	InsertValues func(entity T) []any
	// UpdatedAtColumn, when set, is stamped to now() on every update.
	UpdatedAtColumn string
	// SoftDeleteColumn, when set, enables SoftDelete by stamping it to now().
	SoftDeleteColumn string
}

func (s Schema[T]) validate() error {
	if s.Table == "" {
		return errors.New("schema requires a table name")
	}
	if s.IDColumn == "" {
		return errors.New("schema requires an ID column")
	}
	if len(s.Columns) == 0 {
		return errors.New("schema requires at least one column")
	}
	if s.Fields == nil {
		return errors.New("schema requires a field extractor")
	}
	var zero T
	if got := len(s.Fields(&zero)); got != len(s.Columns) {
		return fmt.Errorf("schema for %s maps %d fields to %d columns", s.Table, got, len(s.Columns))
	}
	if len(s.InsertColumns) == 0 || s.InsertValues == nil {
		return errors.New("schema requires insert columns and an extractor")
	}
	return nil
}

func (s Schema[T]) hasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

type conditionKind int

const (
	condEq conditionKind = iota
	condIsNull
	condIn
	condRange
	condMatch
)

// Condition is one typed predicate on a column, built with Eq, IsNull, In,
// Range or Match. A Filters slice ANDs its conditions in order.
type Condition struct {
	column   string
	kind     conditionKind
	value    any
	min, max any
}

// Eq matches rows where the column equals the value. A nil value matches
// rows where the column IS NULL.
func Eq(column string, value any) Condition {
	if value == nil {
		return Condition{column: column, kind: condIsNull}
	}
	return Condition{column: column, kind: condEq, value: value}
}

// IsNull matches rows where the column IS NULL.
func IsNull(column string) Condition {
	return Condition{column: column, kind: condIsNull}
}

// In matches rows where the column equals any of the values, rendered as
// = ANY so the whole set binds as one array argument. Any slice type the
// driver can encode works, identifier sets included.
func In(column string, values any) Condition {
	return Condition{column: column, kind: condIn, value: values}
}

// Range matches rows where min <= column <= max. Either bound may be nil to
// leave that side open; at least one must be set.
func Range(column string, min, max any) Condition {
	return Condition{column: column, kind: condRange, min: min, max: max}
}

// Match matches rows where the column matches the pattern, case
// insensitively. The pattern uses SQL LIKE syntax, % and _ as wildcards.
func Match(column, pattern string) Condition {
	return Condition{column: column, kind: condMatch, value: pattern}
}

// Filters is an ordered list of conditions ANDed together.
type Filters []Condition

// Changes maps column names to new values for an update.
type Changes map[string]any

// Repository provides generic CRUD over one entity type. It is bound to a
// Querier: bind it to a session for transactional work, or to the pool for
// standalone reads. Mutations execute immediately against the querier but
// nothing persists until the session commits; the repository never commits
// behind the caller's back.
type Repository[T any, ID comparable] struct {
	schema  Schema[T]
	q       database.Querier
	session *database.Session
}

// New binds a repository to a transactional session.
func New[T any, ID comparable](schema Schema[T], session *database.Session) (*Repository[T, ID], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	return &Repository[T, ID]{schema: schema, q: session, session: session}, nil
}

// NewReadOnly binds a repository straight to the pool for auto-committed
// single-statement reads. Commit and Rollback are unavailable.
func NewReadOnly[T any, ID comparable](schema Schema[T], q database.Querier) (*Repository[T, ID], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	return &Repository[T, ID]{schema: schema, q: q}, nil
}

// Commit makes the bound session's work durable.
func (r *Repository[T, ID]) Commit(ctx context.Context) error {
	if r.session == nil {
		return ErrNoSession
	}
	return r.session.Commit(ctx)
}

// Rollback discards the bound session's uncommitted work.
func (r *Repository[T, ID]) Rollback(ctx context.Context) error {
	if r.session == nil {
		return ErrNoSession
	}
	return r.session.Rollback(ctx)
}

// Create inserts the entity and returns it with generated columns filled in.
func (r *Repository[T, ID]) Create(ctx context.Context, entity T) (T, error) {
	var created T

	placeholders := make([]string, len(r.schema.InsertColumns))
	for i := range r.schema.InsertColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		r.schema.Table,
		strings.Join(r.schema.InsertColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(r.schema.Columns, ", "),
	)

	row := r.q.QueryRow(ctx, sql, r.schema.InsertValues(entity)...)
	if err := row.Scan(r.schema.Fields(&created)...); err != nil {
		var zero T
		return zero, fmt.Errorf("inserting into %s: %w", r.schema.Table, err)
	}
	return created, nil
}

// CreateMany inserts the entities one statement at a time within the bound
// session, so a failure leaves earlier inserts uncommitted and rollbackable.
func (r *Repository[T, ID]) CreateMany(ctx context.Context, entities []T) ([]T, error) {
	created := make([]T, 0, len(entities))
	for i, entity := range entities {
		c, err := r.Create(ctx, entity)
		if err != nil {
			return nil, fmt.Errorf("inserting entity %d: %w", i, err)
		}
		created = append(created, c)
	}
	return created, nil
}

// GetByID fetches one entity by primary key. Returns pgx.ErrNoRows when the
// ID does not exist.
func (r *Repository[T, ID]) GetByID(ctx context.Context, id ID) (T, error) {
	return r.one(ctx, Filters{Eq(r.schema.IDColumn, id)})
}

// GetBy fetches the first entity matching a single equality condition.
func (r *Repository[T, ID]) GetBy(ctx context.Context, column string, value any) (T, error) {
	return r.one(ctx, Filters{Eq(column, value)})
}

// Page bounds a listing. Limit <= 0 means no limit; Offset <= 0 means start
// from the first row.
type Page struct {
	Limit  int
	Offset int
}

// GetAll lists entities in primary key order.
func (r *Repository[T, ID]) GetAll(ctx context.Context, page Page) ([]T, error) {
	return r.Filter(ctx, nil, page)
}

// Filter lists entities matching all conditions, in primary key order.
func (r *Repository[T, ID]) Filter(ctx context.Context, filters Filters, page Page) ([]T, error) {
	where, args, err := r.where(filters, 0)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(r.schema.Columns, ", "), r.schema.Table, where, r.schema.IDColumn)
	if page.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", page.Offset)
	}

	rows, err := r.q.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.schema.Table, err)
	}
	results, err := r.collect(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning %s rows: %w", r.schema.Table, err)
	}
	return results, nil
}

// Update applies the given column changes to one entity and returns the
// updated row. Returns ErrEmptyUpdate for an empty change set and
// pgx.ErrNoRows when the ID does not exist.
func (r *Repository[T, ID]) Update(ctx context.Context, id ID, changes Changes) (T, error) {
	var zero T
	if len(changes) == 0 {
		return zero, ErrEmptyUpdate
	}

	set, args, err := r.set(changes)
	if err != nil {
		return zero, err
	}
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		r.schema.Table, set, r.schema.IDColumn, len(args), strings.Join(r.schema.Columns, ", "))

	var updated T
	row := r.q.QueryRow(ctx, sql, args...)
	if err := row.Scan(r.schema.Fields(&updated)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, pgx.ErrNoRows
		}
		return zero, fmt.Errorf("updating %s: %w", r.schema.Table, err)
	}
	return updated, nil
}

// UpdateMany applies the changes to every entity matching the filters and
// returns the number of affected rows.
func (r *Repository[T, ID]) UpdateMany(ctx context.Context, filters Filters, changes Changes) (int64, error) {
	if len(changes) == 0 {
		return 0, ErrEmptyUpdate
	}

	set, args, err := r.set(changes)
	if err != nil {
		return 0, err
	}
	where, args2, err := r.where(filters, len(args))
	if err != nil {
		return 0, err
	}
	args = append(args, args2...)

	sql := fmt.Sprintf("UPDATE %s SET %s%s", r.schema.Table, set, where)
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", r.schema.Table, err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes one entity by primary key. Returns pgx.ErrNoRows when the
// ID does not exist.
func (r *Repository[T, ID]) Delete(ctx context.Context, id ID) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", r.schema.Table, r.schema.IDColumn)
	tag, err := r.q.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", r.schema.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteMany removes every entity matching the filters and returns the
// number of deleted rows. Empty filters delete everything; callers that want
// that should mean it.
func (r *Repository[T, ID]) DeleteMany(ctx context.Context, filters Filters) (int64, error) {
	where, args, err := r.where(filters, 0)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("DELETE FROM %s%s", r.schema.Table, where)
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", r.schema.Table, err)
	}
	return tag.RowsAffected(), nil
}

// SoftDelete stamps the entity's deletion timestamp instead of removing the
// row. Schemas without a SoftDeleteColumn get ErrSoftDeleteUnsupported.
func (r *Repository[T, ID]) SoftDelete(ctx context.Context, id ID) error {
	if r.schema.SoftDeleteColumn == "" {
		return fmt.Errorf("%s: %w", r.schema.Table, ErrSoftDeleteUnsupported)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s = now() WHERE %s = $1 AND %s IS NULL",
		r.schema.Table, r.schema.SoftDeleteColumn, r.schema.IDColumn, r.schema.SoftDeleteColumn)
	tag, err := r.q.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("soft deleting from %s: %w", r.schema.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Exists reports whether any entity matches the filters.
func (r *Repository[T, ID]) Exists(ctx context.Context, filters Filters) (bool, error) {
	where, args, err := r.where(filters, 0)
	if err != nil {
		return false, err
	}
	sql := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s%s)", r.schema.Table, where)

	var exists bool
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking existence in %s: %w", r.schema.Table, err)
	}
	return exists, nil
}

// Count returns the number of entities matching the filters.
func (r *Repository[T, ID]) Count(ctx context.Context, filters Filters) (int64, error) {
	where, args, err := r.where(filters, 0)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("SELECT count(*) FROM %s%s", r.schema.Table, where)

	var count int64
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", r.schema.Table, err)
	}
	return count, nil
}

func (r *Repository[T, ID]) one(ctx context.Context, filters Filters) (T, error) {
	var zero T
	where, args, err := r.where(filters, 0)
	if err != nil {
		return zero, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT 1",
		strings.Join(r.schema.Columns, ", "), r.schema.Table, where, r.schema.IDColumn)

	var entity T
	row := r.q.QueryRow(ctx, sql, args...)
	if err := row.Scan(r.schema.Fields(&entity)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, pgx.ErrNoRows
		}
		return zero, fmt.Errorf("selecting from %s: %w", r.schema.Table, err)
	}
	return entity, nil
}

// collect drains rows into entities through the schema's field extractor.
func (r *Repository[T, ID]) collect(rows pgx.Rows) ([]T, error) {
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var entity T
		if err := rows.Scan(r.schema.Fields(&entity)...); err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// where renders the conditions as an AND-joined clause, binding arguments in
// condition order.
func (r *Repository[T, ID]) where(filters Filters, argOffset int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, c := range filters {
		if !r.schema.hasColumn(c.column) {
			return "", nil, &UnknownColumnError{Table: r.schema.Table, Column: c.column}
		}
		switch c.kind {
		case condIsNull:
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", c.column))
		case condEq:
			args = append(args, c.value)
			clauses = append(clauses, fmt.Sprintf("%s = $%d", c.column, argOffset+len(args)))
		case condIn:
			args = append(args, c.value)
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", c.column, argOffset+len(args)))
		case condMatch:
			args = append(args, c.value)
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", c.column, argOffset+len(args)))
		case condRange:
			if c.min == nil && c.max == nil {
				return "", nil, fmt.Errorf("%s.%s: %w", r.schema.Table, c.column, ErrEmptyRange)
			}
			if c.min != nil {
				args = append(args, c.min)
				clauses = append(clauses, fmt.Sprintf("%s >= $%d", c.column, argOffset+len(args)))
			}
			if c.max != nil {
				args = append(args, c.max)
				clauses = append(clauses, fmt.Sprintf("%s <= $%d", c.column, argOffset+len(args)))
			}
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// set renders the SET clause, stamping the updated-at column when declared.
// Columns are sorted so the SQL is deterministic regardless of map iteration
// order.
func (r *Repository[T, ID]) set(changes Changes) (string, []any, error) {
	columns := make([]string, 0, len(changes))
	for column := range changes {
		if !r.schema.hasColumn(column) {
			return "", nil, &UnknownColumnError{Table: r.schema.Table, Column: column}
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		args = append(args, changes[column])
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if r.schema.UpdatedAtColumn != "" {
		if _, explicit := changes[r.schema.UpdatedAtColumn]; !explicit {
			assignments = append(assignments, fmt.Sprintf("%s = now()", r.schema.UpdatedAtColumn))
		}
	}
	return strings.Join(assignments, ", "), args, nil
}
