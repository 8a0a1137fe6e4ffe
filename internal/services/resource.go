package services

import (
	"context"
	"fmt"

	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Repository is the row store behind a Resource. *store.Table and
// *store.MemTable both satisfy it.
type Repository[T any] interface {
	Name() string
	List(ctx context.Context, offset, limit int, conds ...store.Cond) ([]T, error)
	Get(ctx context.Context, id int) (T, error)
	Exists(ctx context.Context, id int) (bool, error)
	Insert(ctx context.Context, v T) (T, error)
	Update(ctx context.Context, id int, v T) (T, error)
	Patch(ctx context.Context, id int, fields map[string]any) (T, error)
	PatchWhere(ctx context.Context, fields map[string]any, conds ...store.Cond) (int64, error)
	Delete(ctx context.Context, id int) error
}

// ExistsFunc reports whether row id exists in some other table.
type ExistsFunc func(ctx context.Context, id int) (bool, error)

type defaulter interface{ ApplyDefaults() }

type ownerSetter interface{ SetOwnerID(id int) }

type parentSetter interface{ SetParentID(id int) }

type parent struct {
	name   string
	column string
	exists ExistsFunc
}

type reference[T any] struct {
	name   string
	id     func(T) int
	exists ExistsFunc
}

// Resource implements list/get/create/update/delete for one entity type.
// Entities opt into server-side fields through ApplyDefaults, SetOwnerID
// and SetParentID.
type Resource[T any] struct {
	name   string
	repo   Repository[T]
	parent *parent
	refs   []reference[T]
}

func NewResource[T any](name string, repo Repository[T]) *Resource[T] {
	return &Resource[T]{name: name, repo: repo}
}

// WithParent makes T a child of another table joined on column.
func (s *Resource[T]) WithParent(name, column string, exists ExistsFunc) *Resource[T] {
	s.parent = &parent{name: name, column: column, exists: exists}
	return s
}

// WithReference checks that the id picked from each new or updated row
// exists before it is written. A zero id is not checked.
func (s *Resource[T]) WithReference(name string, id func(T) int, exists ExistsFunc) *Resource[T] {
	s.refs = append(s.refs, reference[T]{name: name, id: id, exists: exists})
	return s
}

func (s *Resource[T]) Name() string {
	return s.name
}

// Exists reports whether row id exists.
func (s *Resource[T]) Exists(ctx context.Context, id int) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// ClampLimit applies the default page size and the upper bound.
func ClampLimit(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

func (s *Resource[T]) List(ctx context.Context, offset, limit int, conds ...store.Cond) ([]T, error) {
	offset, limit = ClampLimit(offset, limit)
	return s.repo.List(ctx, offset, limit, conds...)
}

// ListChildren lists rows belonging to parentID, failing with
// store.ErrNotFound when the parent does not exist.
func (s *Resource[T]) ListChildren(ctx context.Context, parentID, offset, limit int) ([]T, error) {
	if err := s.checkParent(ctx, parentID); err != nil {
		return nil, err
	}
	return s.List(ctx, offset, limit, store.Eq(s.parent.column, parentID))
}

func (s *Resource[T]) Get(ctx context.Context, id int) (T, error) {
	return s.repo.Get(ctx, id)
}

// Create fills server-side fields, validates and inserts v.
func (s *Resource[T]) Create(ctx context.Context, caller types.User, v T) (T, error) {
	var zero T
	if o, ok := any(&v).(ownerSetter); ok {
		o.SetOwnerID(caller.ID)
	}
	if err := s.prepare(ctx, &v); err != nil {
		return zero, err
	}
	return s.repo.Insert(ctx, v)
}

// CreateChild creates v under parentID after checking the parent exists.
func (s *Resource[T]) CreateChild(ctx context.Context, caller types.User, parentID int, v T) (T, error) {
	var zero T
	if err := s.checkParent(ctx, parentID); err != nil {
		return zero, err
	}
	if p, ok := any(&v).(parentSetter); ok {
		p.SetParentID(parentID)
	}
	return s.Create(ctx, caller, v)
}

// Update loads row id, lets apply overlay the fields present in the
// request, then validates and writes every mutable column back.
func (s *Resource[T]) Update(ctx context.Context, id int, apply func(*T) error) (T, error) {
	var zero T
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := apply(&current); err != nil {
		return zero, err
	}
	if err := s.prepare(ctx, &current); err != nil {
		return zero, err
	}
	return s.repo.Update(ctx, id, current)
}

// Patch sets only the named columns. It is used for state transitions.
func (s *Resource[T]) Patch(ctx context.Context, id int, fields map[string]any) (T, error) {
	return s.repo.Patch(ctx, id, fields)
}

// PatchWhere sets the named columns on every matching row.
func (s *Resource[T]) PatchWhere(ctx context.Context, fields map[string]any, conds ...store.Cond) (int64, error) {
	return s.repo.PatchWhere(ctx, fields, conds...)
}

func (s *Resource[T]) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *Resource[T]) prepare(ctx context.Context, v *T) error {
	if d, ok := any(v).(defaulter); ok {
		d.ApplyDefaults()
	}
	if err := Validate(v); err != nil {
		return err
	}
	for _, ref := range s.refs {
		id := ref.id(*v)
		if id == 0 {
			continue
		}
		ok, err := ref.exists(ctx, id)
		if err != nil {
			return fmt.Errorf("services.Resource(%s): check %s: %w", s.name, ref.name, err)
		}
		if !ok {
			return notFound(ref.name, id)
		}
	}
	return nil
}

func (s *Resource[T]) checkParent(ctx context.Context, parentID int) error {
	if s.parent == nil {
		return fmt.Errorf("services.Resource(%s): no parent configured", s.name)
	}
	ok, err := s.parent.exists(ctx, parentID)
	if err != nil {
		return fmt.Errorf("services.Resource(%s): check %s: %w", s.name, s.parent.name, err)
	}
	if !ok {
		return notFound(s.parent.name, parentID)
	}
	return nil
}
