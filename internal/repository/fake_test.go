package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeQuerier records executed SQL and serves canned results, so the SQL the
// repository generates can be asserted without a live database.
type fakeQuerier struct {
	gotSQL  []string
	gotArgs [][]any

	// results served in order; one entry consumed per Query call
	rows []*fakeRows
	// tags served in order; one entry consumed per Exec call
	tags []pgconn.CommandTag

	err error
}

func (f *fakeQuerier) record(sql string, args []any) {
	f.gotSQL = append(f.gotSQL, sql)
	f.gotArgs = append(f.gotArgs, args)
}

func (f *fakeQuerier) lastSQL() string {
	if len(f.gotSQL) == 0 {
		return ""
	}
	return f.gotSQL[len(f.gotSQL)-1]
}

func (f *fakeQuerier) lastArgs() []any {
	if len(f.gotArgs) == 0 {
		return nil
	}
	return f.gotArgs[len(f.gotArgs)-1]
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.record(sql, args)
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	if len(f.tags) == 0 {
		return pgconn.NewCommandTag("OK 0"), nil
	}
	tag := f.tags[0]
	f.tags = f.tags[1:]
	return tag, nil
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record(sql, args)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) == 0 {
		return &fakeRows{}, nil
	}
	rows := f.rows[0]
	f.rows = f.rows[1:]
	return rows, nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rows, err := f.Query(ctx, sql, args...)
	if err != nil {
		return errRow{err: err}
	}
	return rowAdapter{rows: rows}
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

type rowAdapter struct{ rows pgx.Rows }

func (r rowAdapter) Scan(dest ...any) error {
	defer r.rows.Close()
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

// newRows builds fake rows with the given column names and row values.
func newRows(columns []string, values ...[]any) *fakeRows {
	fields := make([]pgconn.FieldDescription, len(columns))
	for i, c := range columns {
		fields[i] = pgconn.FieldDescription{Name: c}
	}
	return &fakeRows{fields: fields, values: values, cursor: -1}
}

// fakeRows implements just enough of pgx.Rows for struct scanning.
type fakeRows struct {
	fields []pgconn.FieldDescription
	values [][]any
	cursor int
	closed bool
	err    error
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.cursor++
	return r.cursor < len(r.values)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.cursor < 0 || r.cursor >= len(r.values) {
		return errors.New("scan called without next")
	}
	row := r.values[r.cursor]
	if len(dest) != len(row) {
		return fmt.Errorf("scan expects %d destinations, got %d", len(row), len(dest))
	}
	for i, value := range row {
		dv := reflect.ValueOf(dest[i]).Elem()
		if value == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		sv := reflect.ValueOf(value)
		if !sv.Type().AssignableTo(dv.Type()) {
			if !sv.Type().ConvertibleTo(dv.Type()) {
				return fmt.Errorf("cannot scan %T into %s", value, dv.Type())
			}
			sv = sv.Convert(dv.Type())
		}
		dv.Set(sv)
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	if r.cursor < 0 || r.cursor >= len(r.values) {
		return nil, errors.New("values called without next")
	}
	return r.values[r.cursor], nil
}
