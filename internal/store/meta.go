package store

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Columns every resource table carries and the database maintains.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

type column struct {
	name      string
	index     []int
	immutable bool
}

func (c column) managed() bool {
	return c.name == ColumnID || c.name == ColumnCreatedAt || c.name == ColumnUpdatedAt
}

type tableMeta struct {
	columns []column
	byName  map[string]column
}

var metaCache sync.Map

// metaOf reads the `db:"name[,immutable]"` tags of T, including fields
// promoted from embedded structs.
func metaOf[T any]() tableMeta {
	typ := reflect.TypeFor[T]()
	if cached, ok := metaCache.Load(typ); ok {
		return cached.(tableMeta)
	}
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("store: %s is not a struct", typ))
	}

	meta := tableMeta{byName: map[string]column{}}
	for _, f := range reflect.VisibleFields(typ) {
		tag, ok := f.Tag.Lookup("db")
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		col := column{name: name, index: f.Index, immutable: opts == "immutable"}
		meta.columns = append(meta.columns, col)
		meta.byName[name] = col
	}
	metaCache.Store(typ, meta)
	return meta
}

func (m tableMeta) names() []string {
	out := make([]string, len(m.columns))
	for i, c := range m.columns {
		out[i] = c.name
	}
	return out
}

// targets returns scan destinations for every column of v, in column order.
func (m tableMeta) targets(v reflect.Value) []any {
	out := make([]any, len(m.columns))
	for i, c := range m.columns {
		out[i] = v.FieldByIndex(c.index).Addr().Interface()
	}
	return out
}

func (m tableMeta) has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

func (m tableMeta) checkColumns(names ...string) error {
	for _, n := range names {
		if !m.has(n) {
			return fmt.Errorf("store: unknown column %q", n)
		}
	}
	return nil
}
