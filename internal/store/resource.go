package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates no item with the requested id exists.
var ErrNotFound = errors.New("store: item not found")

// ResourceSpec parameterizes the generic CRUD surface for one resource.
// The near-duplicate per-resource handlers of a typical dashboard collapse
// into this one abstraction instantiated per table.
type ResourceSpec struct {
	Name   string   // URL segment, e.g. "projects"
	Table  string   // backing SQL table
	Fields []string // allowed updatable columns
}

// Resources lists the dashboard's CRUD resources.
var Resources = []ResourceSpec{
	{Name: "projects", Table: "projects", Fields: []string{"name", "status", "notes"}},
	{Name: "notes", Table: "notes", Fields: []string{"title", "body"}},
	{Name: "shopping", Table: "shopping_items", Fields: []string{"name", "quantity", "done"}},
}

// Item is one resource row: id, the spec's fields, and timestamps.
type Item map[string]string

// filterFields keeps only columns the spec allows. Field names interpolated
// into SQL always come from the spec, never from the request.
func (spec ResourceSpec) filterFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range spec.Fields {
		if v, ok := fields[f]; ok {
			out[f] = v
		}
	}
	return out
}

func (spec ResourceSpec) columns() string {
	return "id, " + strings.Join(spec.Fields, ", ") + ", created_at, updated_at"
}

// ListItems returns all items of a resource, newest first.
func (s *Store) ListItems(ctx context.Context, spec ResourceSpec) ([]Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC`, spec.columns(), spec.Table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", spec.Name, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(spec, rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem returns a single item by id, or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, spec ResourceSpec, id string) (Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, spec.columns(), spec.Table)

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", spec.Name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanItem(spec, rows)
}

// CreateItem inserts a new item with a fresh id; unknown fields are dropped.
func (s *Store) CreateItem(ctx context.Context, spec ResourceSpec, fields map[string]string) (Item, error) {
	fields = spec.filterFields(fields)

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)

	cols := []string{"id"}
	placeholders := []string{"?"}
	args := []any{id}
	for _, f := range spec.Fields {
		cols = append(cols, f)
		placeholders = append(placeholders, "?")
		args = append(args, fields[f])
	}
	cols = append(cols, "created_at", "updated_at")
	placeholders = append(placeholders, "?", "?")
	args = append(args, now, now)

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		spec.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", spec.Name, err)
	}
	return s.GetItem(ctx, spec, id)
}

// UpdateItem applies the allowed subset of fields to an existing item.
func (s *Store) UpdateItem(ctx context.Context, spec ResourceSpec, id string, fields map[string]string) (Item, error) {
	fields = spec.filterFields(fields)
	if len(fields) == 0 {
		return s.GetItem(ctx, spec, id)
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, f := range spec.Fields {
		if v, ok := fields[f]; ok {
			sets = append(sets, f+" = ?")
			args = append(args, v)
		}
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, spec.Table, strings.Join(sets, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update %s: %w", spec.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetItem(ctx, spec, id)
}

// DeleteItem removes an item by id, or returns ErrNotFound.
func (s *Store) DeleteItem(ctx context.Context, spec ResourceSpec, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, spec.Table)

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", spec.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(spec ResourceSpec, rows *sql.Rows) (Item, error) {
	vals := make([]string, len(spec.Fields)+3)
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", spec.Name, err)
	}

	item := Item{"id": vals[0]}
	for i, f := range spec.Fields {
		item[f] = vals[i+1]
	}
	item["created_at"] = vals[len(vals)-2]
	item["updated_at"] = vals[len(vals)-1]
	return item, nil
}
