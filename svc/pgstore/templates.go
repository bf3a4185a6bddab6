package pgstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/libraryops/pkg/pg"
	"github.com/dmitrymomot/libraryops/svc/template"
)

const templateColumns = `id, name, title, message, variables, type, category, channel,
	is_system, is_active, created_at, updated_at`

// TemplateStore implements template.Store on PostgreSQL.
type TemplateStore struct {
	db Querier
}

// NewTemplateStore creates a template store over db.
func NewTemplateStore(db Querier) *TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) Create(ctx context.Context, t template.Template) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		templateArgs(t)...,
	)
	if pg.IsDuplicateKeyError(err) {
		return template.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *TemplateStore) Update(ctx context.Context, t template.Template) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_templates SET
			name = $2, title = $3, message = $4, variables = $5, type = $6, category = $7,
			channel = $8, is_system = $9, is_active = $10, created_at = $11, updated_at = $12
		WHERE id = $1`,
		templateArgs(t)...,
	)
	if pg.IsDuplicateKeyError(err) {
		return template.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return template.ErrTemplateNotFound
	}
	return nil
}

func (s *TemplateStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notification_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return template.ErrTemplateNotFound
	}
	return nil
}

func (s *TemplateStore) Get(ctx context.Context, id string) (template.Template, error) {
	return s.one(ctx, `SELECT `+templateColumns+` FROM notification_templates WHERE id = $1`, id)
}

func (s *TemplateStore) GetByName(ctx context.Context, name string) (template.Template, error) {
	return s.one(ctx, `SELECT `+templateColumns+` FROM notification_templates WHERE name = $1`, name)
}

// List returns matching templates ordered by name.
func (s *TemplateStore) List(ctx context.Context, f template.ListFilter) ([]template.Template, error) {
	query, args := templateQuery(f)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

func (s *TemplateStore) one(ctx context.Context, query string, arg string) (template.Template, error) {
	t, err := scanTemplate(s.db.QueryRow(ctx, query, arg))
	if pg.IsNotFoundError(err) {
		return template.Template{}, template.ErrTemplateNotFound
	}
	if err != nil {
		return template.Template{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func templateQuery(f template.ListFilter) (string, []any) {
	var (
		args  []any
		where []string
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if f.SystemOnly {
		where = append(where, "is_system")
	}
	if f.Channel != "" {
		where = append(where, "channel = "+arg(f.Channel))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}

	query := "SELECT " + templateColumns + " FROM notification_templates"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY name", args
}

func templateArgs(t template.Template) []any {
	vars := t.Variables
	if vars == nil {
		vars = []string{}
	}
	return []any{
		t.ID, t.Name, t.Title, t.Message, vars, t.Type, t.Category, t.Channel,
		t.IsSystem, t.IsActive, t.CreatedAt, t.UpdatedAt,
	}
}

func scanTemplate(row pgx.Row) (template.Template, error) {
	var t template.Template
	err := row.Scan(
		&t.ID, &t.Name, &t.Title, &t.Message, &t.Variables, &t.Type, &t.Category, &t.Channel,
		&t.IsSystem, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}
