package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/libraryops/pkg/logger"
)

type seedFile struct {
	Templates []Template `yaml:"templates"`
}

// SeedSystemTemplates reads a YAML document of the form
//
//	templates:
//	  - name: loan_overdue
//	    title: "Overdue: {{title}}"
//	    message: "..."
//	    variables: [title, due_date]
//	    channel: EMAIL
//
// and upserts each entry by name as an active system template.
// It returns the number of templates written.
func (r *Registry) SeedSystemTemplates(ctx context.Context, src io.Reader) (int, error) {
	var doc seedFile
	if err := yaml.NewDecoder(src).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, errors.Join(ErrInvalidSeed, err)
	}

	n := 0
	for _, seed := range doc.Templates {
		if err := r.validate(ctx, seed.Name, seed.Title, seed.Message, seed.Variables); err != nil {
			return n, fmt.Errorf("%w: %s: %w", ErrInvalidSeed, seed.Name, err)
		}

		existing, err := r.store.GetByName(ctx, seed.Name)
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			_, err = r.Create(ctx, CreateParams{
				Name:      seed.Name,
				Title:     seed.Title,
				Message:   seed.Message,
				Variables: seed.Variables,
				Type:      seed.Type,
				Category:  seed.Category,
				Channel:   seed.Channel,
				IsSystem:  true,
			})
		case err == nil:
			existing.Title = seed.Title
			existing.Message = seed.Message
			existing.Variables = seed.Variables
			existing.Type = seed.Type
			existing.Category = seed.Category
			existing.Channel = seed.Channel
			existing.IsSystem = true
			existing.IsActive = true
			existing.UpdatedAt = r.now()
			err = r.store.Update(ctx, existing)
			r.invalidate(existing.Name)
		}
		if err != nil {
			return n, fmt.Errorf("seed template %s: %w", seed.Name, err)
		}
		n++
	}

	r.logger.LogAttrs(ctx, slog.LevelInfo, "system templates seeded",
		logger.Component("template"),
		logger.Count("templates", n),
	)
	return n, nil
}
