package template_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/svc/template"
)

func newRegistry(t *testing.T) *template.Registry {
	t.Helper()
	return template.NewRegistry(template.NewMemoryStore(),
		template.WithRegistryLogger(slog.New(slog.DiscardHandler)),
		template.WithNameCache(16, time.Minute),
	)
}

func welcome() template.CreateParams {
	return template.CreateParams{
		Name:      "welcome",
		Title:     "Welcome {{name}}",
		Message:   "Your card number is {{card}}",
		Variables: []string{"name", "card"},
		Channel:   "EMAIL",
	}
}

func TestRegistry_CreateDuplicateName(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, welcome())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)

	_, err = r.Create(ctx, welcome())
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
	assert.ErrorIs(t, err, template.ErrDuplicateName)
}

func TestRegistry_CreateValidates(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	_, err := r.Create(context.Background(), template.CreateParams{Name: "", Title: "t", Message: "{{x}}"})

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name"))

	_, err = r.Create(context.Background(), template.CreateParams{Name: "bad", Title: "{{a}}", Message: "{{b}}", Variables: []string{"a"}})
	assert.True(t, apperr.IsValidation(err))

	_, err = r.Create(context.Background(), template.CreateParams{Name: "hyphen", Title: "Hi {{first-name}}", Message: "Due {{ due date }}"})
	assert.True(t, apperr.IsValidation(err))
	assert.ErrorIs(t, err, template.ErrInvalidPlaceholder)

	_, err = r.GetByName(context.Background(), "hyphen")
	assert.True(t, apperr.IsNotFound(err), "rejected templates are not stored")
}

func TestRegistry_UpdateAndRename(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	ctx := context.Background()
	created, err := r.Create(ctx, welcome())
	require.NoError(t, err)
	_, err = r.Create(ctx, template.CreateParams{Name: "other", Title: "x", Message: "y"})
	require.NoError(t, err)

	// warm the name cache
	_, err = r.GetByName(ctx, "welcome")
	require.NoError(t, err)

	newName := "greeting"
	updated, err := r.Update(ctx, created.ID, template.UpdateParams{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "greeting", updated.Name)

	_, err = r.GetByName(ctx, "welcome")
	assert.True(t, apperr.IsNotFound(err))

	taken := "other"
	_, err = r.Update(ctx, created.ID, template.UpdateParams{Name: &taken})
	assert.True(t, apperr.IsConflict(err))

	badMsg := "{{undeclared}}"
	_, err = r.Update(ctx, created.ID, template.UpdateParams{Message: &badMsg})
	assert.True(t, apperr.IsValidation(err))

	_, err = r.Update(ctx, "missing", template.UpdateParams{})
	assert.True(t, apperr.IsNotFound(err))
}

func TestRegistry_SystemTemplatesAreProtected(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	ctx := context.Background()

	p := welcome()
	p.IsSystem = true
	sys, err := r.Create(ctx, p)
	require.NoError(t, err)

	err = r.Delete(ctx, sys.ID)
	assert.True(t, apperr.IsConflict(err))
	assert.ErrorIs(t, err, template.ErrSystemTemplate)

	rename := "renamed"
	_, err = r.Update(ctx, sys.ID, template.UpdateParams{Name: &rename})
	assert.True(t, apperr.IsConflict(err))

	title := "Hello {{name}}"
	_, err = r.Update(ctx, sys.ID, template.UpdateParams{Title: &title})
	assert.NoError(t, err)
}

func TestRegistry_Delete(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	ctx := context.Background()
	created, err := r.Create(ctx, welcome())
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, created.ID))
	_, err = r.Get(ctx, created.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(r.Delete(ctx, created.ID)))
}

func TestRegistry_Render(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	ctx := context.Background()
	created, err := r.Create(ctx, welcome())
	require.NoError(t, err)

	tpl, out, err := r.Render(ctx, template.Ref{Name: "welcome"}, map[string]any{"name": "Ana", "card": 42}, "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, tpl.ID)
	assert.Equal(t, "Welcome Ana", out.Title)
	assert.Equal(t, "Your card number is 42", out.Message)

	inactive := false
	_, err = r.Update(ctx, created.ID, template.UpdateParams{IsActive: &inactive})
	require.NoError(t, err)

	_, _, err = r.Render(ctx, template.Ref{ID: created.ID}, map[string]any{"name": "Ana", "card": 42}, "")
	assert.ErrorIs(t, err, template.ErrTemplateInactive)
	assert.True(t, apperr.IsValidation(err))

	_, _, err = r.Render(ctx, template.Ref{}, nil, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	ctx := context.Background()
	_, err := r.Create(ctx, template.CreateParams{Name: "b", Title: "t", Message: "m", Channel: "SMS"})
	require.NoError(t, err)
	_, err = r.Create(ctx, template.CreateParams{Name: "a", Title: "t", Message: "m", Channel: "EMAIL", Inactive: true})
	require.NoError(t, err)

	all, err := r.List(ctx, template.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)

	active, err := r.List(ctx, template.ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Name)
}

const seedYAML = `
templates:
  - name: loan_overdue
    title: "Overdue: {{title}}"
    message: "{{title}} was due on {{due_date}}."
    variables: [title, due_date]
    category: LOANS
    channel: EMAIL
  - name: welcome
    title: "Welcome {{name}}"
    message: "Glad to have you."
    variables: [name]
`

func TestRegistry_SeedSystemTemplates(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	ctx := context.Background()

	n, err := r.SeedSystemTemplates(ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	overdue, err := r.GetByName(ctx, "loan_overdue")
	require.NoError(t, err)
	assert.True(t, overdue.IsSystem)
	assert.True(t, overdue.IsActive)
	assert.Equal(t, []string{"title", "due_date"}, overdue.Variables)

	// second run updates in place
	n, err = r.SeedSystemTemplates(ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := r.List(ctx, template.ListFilter{SystemOnly: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRegistry_SeedRejectsInvalid(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	_, err := r.SeedSystemTemplates(context.Background(), strings.NewReader(`
templates:
  - name: broken
    title: "{{a}}"
    message: "{{b}}"
    variables: [a]
`))
	assert.ErrorIs(t, err, template.ErrInvalidSeed)

	_, err = r.SeedSystemTemplates(context.Background(), strings.NewReader("templates: [oops"))
	assert.ErrorIs(t, err, template.ErrInvalidSeed)
}
