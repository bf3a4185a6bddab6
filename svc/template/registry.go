package template

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/cache"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/pkg/validator"
)

const resource = "template"

// Registry owns template CRUD and rendering by reference.
type Registry struct {
	store     Store
	processor *Processor
	byName    *cache.LRUCache[string, Template]
	logger    *slog.Logger
	now       func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger for the Registry.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegistryClock sets the clock used to stamp templates.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithProcessor replaces the default Processor.
func WithProcessor(p *Processor) RegistryOption {
	return func(r *Registry) {
		if p != nil {
			r.processor = p
		}
	}
}

// WithNameCache caches lookups by name for ttl. Writes through the
// registry invalidate the entry.
func WithNameCache(size int, ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if size > 0 {
			r.byName = cache.NewLRUCache(size, cache.WithTTL[string, Template](ttl))
		}
	}
}

// NewRegistry creates a Registry over store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	if store == nil {
		panic("template: store cannot be nil")
	}
	r := &Registry{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.processor == nil {
		r.processor = NewProcessor(WithLogger(r.logger))
	}
	return r
}

// Processor returns the processor used for validation and rendering.
func (r *Registry) Processor() *Processor { return r.processor }

// CreateParams describes a new template.
type CreateParams struct {
	Name      string
	Title     string
	Message   string
	Variables []string
	Type      string
	Category  string
	Channel   string
	IsSystem  bool
	Inactive  bool
}

// Create validates and stores a new template. Names are unique.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*Template, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := r.validate(ctx, p.Name, p.Title, p.Message, p.Variables); err != nil {
		return nil, err
	}

	now := r.now()
	t := Template{
		ID:        uuid.NewString(),
		Name:      p.Name,
		Title:     p.Title,
		Message:   p.Message,
		Variables: p.Variables,
		Type:      p.Type,
		Category:  p.Category,
		Channel:   p.Channel,
		IsSystem:  p.IsSystem,
		IsActive:  !p.Inactive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.Create(ctx, t); err != nil {
		return nil, r.mapErr(err, t.Name)
	}

	r.logger.LogAttrs(ctx, slog.LevelInfo, "template created",
		logger.Component("template"),
		logger.TemplateName(t.Name),
	)
	return &t, nil
}

// UpdateParams holds optional changes; nil fields are left as they are.
type UpdateParams struct {
	Name      *string
	Title     *string
	Message   *string
	Variables []string
	Type      *string
	Category  *string
	Channel   *string
	IsActive  *bool
}

// Update applies p and re-validates the resulting definition.
// Renaming a system template is a conflict.
func (r *Registry) Update(ctx context.Context, id string, p UpdateParams) (*Template, error) {
	t, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, r.mapErr(err, id)
	}
	oldName := t.Name

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if t.IsSystem && name != t.Name {
			return nil, apperr.Conflict(ErrSystemTemplate, resource, "system template "+t.Name+" cannot be renamed")
		}
		t.Name = name
	}
	set(&t.Title, p.Title)
	set(&t.Message, p.Message)
	set(&t.Type, p.Type)
	set(&t.Category, p.Category)
	set(&t.Channel, p.Channel)
	if p.Variables != nil {
		t.Variables = p.Variables
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}

	if err := r.validate(ctx, t.Name, t.Title, t.Message, t.Variables); err != nil {
		return nil, err
	}

	t.UpdatedAt = r.now()
	if err := r.store.Update(ctx, t); err != nil {
		return nil, r.mapErr(err, t.Name)
	}
	r.invalidate(oldName, t.Name)
	return &t, nil
}

// Delete removes a non-system template.
func (r *Registry) Delete(ctx context.Context, id string) error {
	t, err := r.store.Get(ctx, id)
	if err != nil {
		return r.mapErr(err, id)
	}
	if t.IsSystem {
		return apperr.Conflict(ErrSystemTemplate, resource, "system template "+t.Name+" cannot be deleted")
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return r.mapErr(err, id)
	}
	r.invalidate(t.Name)
	return nil
}

// Get returns the template with id.
func (r *Registry) Get(ctx context.Context, id string) (*Template, error) {
	t, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, r.mapErr(err, id)
	}
	return &t, nil
}

// GetByName returns the template called name, served from the name cache when enabled.
func (r *Registry) GetByName(ctx context.Context, name string) (*Template, error) {
	load := func() (Template, error) { return r.store.GetByName(ctx, name) }

	var (
		t   Template
		err error
	)
	if r.byName != nil {
		t, err = r.byName.GetOrLoad(name, load)
	} else {
		t, err = load()
	}
	if err != nil {
		return nil, r.mapErr(err, name)
	}
	return &t, nil
}

// List returns templates matching filter, ordered by name.
func (r *Registry) List(ctx context.Context, filter ListFilter) ([]Template, error) {
	return r.store.List(ctx, filter)
}

// Resolve fetches the template behind ref and checks it can be used for
// new notifications.
func (r *Registry) Resolve(ctx context.Context, ref Ref) (*Template, error) {
	if ref.IsZero() {
		return nil, apperr.Validation("template", "template reference is required")
	}

	var (
		t   *Template
		err error
	)
	if ref.ID != "" {
		t, err = r.Get(ctx, ref.ID)
	} else {
		t, err = r.GetByName(ctx, ref.Name)
	}
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, apperr.Validationf(ErrTemplateInactive, "template", "template %q is inactive", t.Name)
	}
	return t, nil
}

// Render resolves ref and renders it for locale (BCP 47; empty means the
// processor default).
func (r *Registry) Render(ctx context.Context, ref Ref, values map[string]any, locale string) (*Template, Rendered, error) {
	t, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, Rendered{}, err
	}

	out, err := r.processor.RenderLocale(*t, values, ParseLocale(locale, r.processor.locale))
	if err != nil {
		return nil, Rendered{}, err
	}
	return t, out, nil
}

func (r *Registry) validate(ctx context.Context, name, title, message string, variables []string) error {
	err := validator.Apply(
		validator.RequiredString("name", name),
		validator.MaxLenString("name", name, 100),
		validator.RequiredString("title", title),
		validator.RequiredString("message", message),
	)
	if err != nil {
		return apperr.FromRules(err)
	}
	return r.processor.ValidateDefinition(ctx, title, message, variables)
}

func (r *Registry) invalidate(names ...string) {
	if r.byName == nil {
		return
	}
	for _, n := range names {
		r.byName.Remove(n)
	}
}

func (r *Registry) mapErr(err error, key string) error {
	switch {
	case errors.Is(err, ErrTemplateNotFound):
		return apperr.NotFound(err, resource, key)
	case errors.Is(err, ErrDuplicateName):
		return apperr.Conflict(err, resource, "name "+key+" is already taken")
	}
	return err
}

func set(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
