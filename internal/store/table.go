package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Table is a repository for one resource table whose rows map onto T
// through `db` struct tags. id, created_at and updated_at are assigned by
// the database; columns tagged `db:"name,immutable"` are written on insert
// only.
type Table[T any] struct {
	db   *sql.DB
	name string
	meta tableMeta
}

func NewTable[T any](db *sql.DB, name string) *Table[T] {
	return &Table[T]{db: db, name: name, meta: metaOf[T]()}
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.name
}

func (t *Table[T]) returning() string {
	return " RETURNING " + strings.Join(t.meta.names(), ", ")
}

func (t *Table[T]) scanOne(row *sql.Row) (T, error) {
	var out T
	if err := row.Scan(t.meta.targets(reflect.ValueOf(&out).Elem())...); err != nil {
		return out, translate(t.name, err)
	}
	return out, nil
}

// List returns up to limit rows ordered by id, skipping offset.
func (t *Table[T]) List(ctx context.Context, offset, limit int, conds ...Cond) ([]T, error) {
	op := "store.Table.List(" + t.name + ")"

	for _, c := range conds {
		if err := t.meta.checkColumns(c.Column); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	clause, args := where(conds, nil)
	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY id LIMIT $%d OFFSET $%d",
		strings.Join(t.meta.names(), ", "), t.name, clause, len(args)-1, len(args))

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var item T
		if err := rows.Scan(t.meta.targets(reflect.ValueOf(&item).Elem())...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (t *Table[T]) Get(ctx context.Context, id int) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", strings.Join(t.meta.names(), ", "), t.name)
	return t.scanOne(t.db.QueryRowContext(ctx, query, id))
}

func (t *Table[T]) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", t.name)
	if err := t.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("store.Table.Exists(%s): %w", t.name, err)
	}
	return exists, nil
}

// Insert writes every non-managed column of v and returns the stored row.
func (t *Table[T]) Insert(ctx context.Context, v T) (T, error) {
	rv := reflect.ValueOf(&v).Elem()

	var cols, placeholders []string
	var args []any
	for _, c := range t.meta.columns {
		if c.managed() {
			continue
		}
		args = append(args, rv.FieldByIndex(c.index).Interface())
		cols = append(cols, c.name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s",
		t.name, strings.Join(cols, ", "), strings.Join(placeholders, ", "), t.returning())
	return t.scanOne(t.db.QueryRowContext(ctx, query, args...))
}

// Update overwrites every mutable column of row id with the values in v.
func (t *Table[T]) Update(ctx context.Context, id int, v T) (T, error) {
	rv := reflect.ValueOf(&v).Elem()
	fields := make(map[string]any)
	for _, c := range t.meta.columns {
		if c.managed() || c.immutable {
			continue
		}
		fields[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return t.Patch(ctx, id, fields)
}

// Patch sets only the given columns of row id and refreshes updated_at.
func (t *Table[T]) Patch(ctx context.Context, id int, fields map[string]any) (T, error) {
	var zero T
	set, args, err := t.assignments(fields)
	if err != nil {
		return zero, fmt.Errorf("store.Table.Patch(%s): %w", t.name, err)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d%s", t.name, set, len(args), t.returning())
	return t.scanOne(t.db.QueryRowContext(ctx, query, args...))
}

// PatchWhere sets the given columns on every row matching conds and
// returns the number of rows changed.
func (t *Table[T]) PatchWhere(ctx context.Context, fields map[string]any, conds ...Cond) (int64, error) {
	op := "store.Table.PatchWhere(" + t.name + ")"

	set, args, err := t.assignments(fields)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, c := range conds {
		if err := t.meta.checkColumns(c.Column); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}
	clause, args := where(conds, args)

	result, err := t.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s%s", t.name, set, clause), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translate(t.name, err))
	}
	return result.RowsAffected()
}

func (t *Table[T]) assignments(fields map[string]any) (string, []any, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		c, ok := t.meta.byName[name]
		if !ok {
			return "", nil, fmt.Errorf("unknown column %q", name)
		}
		if c.managed() {
			return "", nil, fmt.Errorf("column %q is managed by the database", name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, fields[name])
		parts = append(parts, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	if t.meta.has(ColumnUpdatedAt) {
		parts = append(parts, ColumnUpdatedAt+" = NOW()")
	}
	return strings.Join(parts, ", "), args, nil
}

// Delete removes row id. Rows referencing it are not touched.
func (t *Table[T]) Delete(ctx context.Context, id int) error {
	result, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.name), id)
	if err != nil {
		return translate(t.name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
