package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/aquanet/apiserver/types"
)

// MemTable is an in-process Table with the same semantics, used by tests
// and by tooling that runs without PostgreSQL.
type MemTable[T any] struct {
	mu     sync.Mutex
	name   string
	meta   tableMeta
	unique []string
	rows   map[int]T
	nextID int
	Now    func() time.Time
}

// NewMemTable returns an empty table. unique names columns whose non-NULL
// values must not repeat.
func NewMemTable[T any](name string, unique ...string) *MemTable[T] {
	meta := metaOf[T]()
	if err := meta.checkColumns(unique...); err != nil {
		panic(err)
	}
	return &MemTable[T]{
		name:   name,
		meta:   meta,
		unique: unique,
		rows:   map[int]T{},
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemTable[T]) Name() string {
	return m.name
}

// Len returns the number of stored rows.
func (m *MemTable[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MemTable[T]) List(_ context.Context, offset, limit int, conds ...Cond) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range conds {
		if err := m.meta.checkColumns(c.Column); err != nil {
			return nil, err
		}
	}

	out := make([]T, 0)
	skipped := 0
	for _, id := range slices.Sorted(maps.Keys(m.rows)) {
		row := m.rows[id]
		if !m.matches(row, conds) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *MemTable[T]) Get(_ context.Context, id int) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return row, ErrNotFound
	}
	return row, nil
}

func (m *MemTable[T]) Exists(_ context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *MemTable[T]) Insert(_ context.Context, v T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnique(v, 0); err != nil {
		var zero T
		return zero, err
	}
	m.nextID++
	rv := reflect.ValueOf(&v).Elem()
	m.setColumn(rv, ColumnID, m.nextID)
	m.setColumn(rv, ColumnCreatedAt, m.Now())
	m.setColumn(rv, ColumnUpdatedAt, nil)
	m.rows[m.nextID] = v
	return v, nil
}

func (m *MemTable[T]) Update(ctx context.Context, id int, v T) (T, error) {
	rv := reflect.ValueOf(&v).Elem()
	fields := make(map[string]any)
	for _, c := range m.meta.columns {
		if c.managed() || c.immutable {
			continue
		}
		fields[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return m.Patch(ctx, id, fields)
}

func (m *MemTable[T]) Patch(_ context.Context, id int, fields map[string]any) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return row, ErrNotFound
	}
	if err := m.apply(&row, fields); err != nil {
		var zero T
		return zero, err
	}
	if err := m.checkUnique(row, id); err != nil {
		var zero T
		return zero, err
	}
	m.rows[id] = row
	return row, nil
}

func (m *MemTable[T]) PatchWhere(_ context.Context, fields map[string]any, conds ...Cond) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range conds {
		if err := m.meta.checkColumns(c.Column); err != nil {
			return 0, err
		}
	}
	var n int64
	for id, row := range m.rows {
		if !m.matches(row, conds) {
			continue
		}
		if err := m.apply(&row, fields); err != nil {
			return n, err
		}
		m.rows[id] = row
		n++
	}
	return n, nil
}

func (m *MemTable[T]) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MemTable[T]) apply(row *T, fields map[string]any) error {
	rv := reflect.ValueOf(row).Elem()
	for name, value := range fields {
		c, ok := m.meta.byName[name]
		if !ok || c.managed() {
			return fmt.Errorf("store: cannot set column %q", name)
		}
		if err := assign(rv.FieldByIndex(c.index), value); err != nil {
			return fmt.Errorf("store: column %q: %w", name, err)
		}
	}
	m.setColumn(rv, ColumnUpdatedAt, m.Now())
	return nil
}

func (m *MemTable[T]) setColumn(rv reflect.Value, name string, value any) {
	if c, ok := m.meta.byName[name]; ok {
		_ = assign(rv.FieldByIndex(c.index), value)
	}
}

func (m *MemTable[T]) checkUnique(v T, self int) error {
	rv := reflect.ValueOf(v)
	for _, name := range m.unique {
		c := m.meta.byName[name]
		want, ok := deref(rv.FieldByIndex(c.index))
		if !ok {
			continue
		}
		for id, other := range m.rows {
			if id == self {
				continue
			}
			got, ok := deref(reflect.ValueOf(other).FieldByIndex(c.index))
			if ok && compareValues(got, want) == 0 {
				return &ConflictError{Field: name, Constraint: m.name + "_" + name + "_key"}
			}
		}
	}
	return nil
}

func (m *MemTable[T]) matches(row T, conds []Cond) bool {
	rv := reflect.ValueOf(row)
	for _, cond := range conds {
		fv, present := deref(rv.FieldByIndex(m.meta.byName[cond.Column].index))
		if !present {
			if cond.op == opEqOrNull {
				continue
			}
			return false
		}
		cv, ok := deref(reflect.ValueOf(cond.Value))
		if !ok {
			return false
		}
		r := compareValues(fv, cv)
		switch cond.op {
		case opLte:
			if r > 0 {
				return false
			}
		case opGte:
			if r < 0 {
				return false
			}
		default:
			if r != 0 {
				return false
			}
		}
	}
	return true
}

func deref(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

func compareValues(a, b reflect.Value) int {
	if at, ok := a.Interface().(time.Time); ok {
		if bt, ok := b.Interface().(time.Time); ok {
			return at.Compare(bt)
		}
	}
	switch {
	case a.CanInt() && b.CanInt():
		return cmp.Compare(a.Int(), b.Int())
	case a.CanFloat() || b.CanFloat():
		return cmp.Compare(toFloat(a), toFloat(b))
	case a.Kind() == reflect.String && b.Kind() == reflect.String:
		return cmp.Compare(a.String(), b.String())
	case a.Kind() == reflect.Bool && b.Kind() == reflect.Bool:
		if a.Bool() == b.Bool() {
			return 0
		}
		return 1
	}
	if reflect.DeepEqual(a.Interface(), b.Interface()) {
		return 0
	}
	return 1
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.CanFloat():
		return v.Float()
	case v.CanInt():
		return float64(v.Int())
	}
	return 0
}

func assign(field reflect.Value, value any) error {
	if value == nil {
		field.SetZero()
		return nil
	}
	vv := reflect.ValueOf(value)
	if vv.Kind() == reflect.Pointer {
		if vv.IsNil() {
			field.SetZero()
			return nil
		}
		if field.Kind() != reflect.Pointer {
			vv = vv.Elem()
		}
	}
	if field.Kind() == reflect.Pointer && vv.Kind() != reflect.Pointer {
		elem := field.Type().Elem()
		if !vv.Type().ConvertibleTo(elem) {
			return fmt.Errorf("cannot assign %s to %s", vv.Type(), field.Type())
		}
		p := reflect.New(elem)
		p.Elem().Set(vv.Convert(elem))
		field.Set(p)
		return nil
	}
	if !vv.Type().ConvertibleTo(field.Type()) {
		return fmt.Errorf("cannot assign %s to %s", vv.Type(), field.Type())
	}
	field.Set(vv.Convert(field.Type()))
	return nil
}

// MemoryUserRepository keeps users in a MemTable with the same UNIQUE
// rules as the users table.
type MemoryUserRepository struct {
	*MemTable[types.User]
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{MemTable: NewMemTable[types.User](userTable, "username", "email")}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	return r.MemTable.Get(ctx, id)
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.first(ctx, Eq("username", username))
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.first(ctx, Eq("email", email))
}

func (r *MemoryUserRepository) first(ctx context.Context, cond Cond) (types.User, error) {
	found, err := r.MemTable.List(ctx, 0, 1, cond)
	if err != nil {
		return types.User{}, err
	}
	if len(found) == 0 {
		return types.User{}, ErrNotFound
	}
	return found[0], nil
}

func (r *MemoryUserRepository) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	return r.MemTable.List(ctx, offset, limit)
}

func (r *MemoryUserRepository) Count(context.Context) (int, error) {
	return r.Len(), nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	return r.Insert(ctx, user)
}

func (r *MemoryUserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	return r.MemTable.Update(ctx, user.ID, user)
}
