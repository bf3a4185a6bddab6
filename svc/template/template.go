package template

import "time"

// Template is a named title/message pair with declared substitution variables.
// Type, Category and Channel are the defaults applied to notifications
// rendered from it.
type Template struct {
	ID        string    `json:"id" yaml:"-"`
	Name      string    `json:"name" yaml:"name"`
	Title     string    `json:"title" yaml:"title"`
	Message   string    `json:"message" yaml:"message"`
	Variables []string  `json:"variables" yaml:"variables"`
	Type      string    `json:"type,omitempty" yaml:"type"`
	Category  string    `json:"category,omitempty" yaml:"category"`
	Channel   string    `json:"channel,omitempty" yaml:"channel"`
	IsSystem  bool      `json:"is_system" yaml:"-"`
	IsActive  bool      `json:"is_active" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Rendered is the output of a successful render.
type Rendered struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Values  map[string]any `json:"values,omitempty"`
}

// Ref points at a template by id or, when ID is empty, by name.
type Ref struct {
	ID   string
	Name string
}

// IsZero reports whether the reference names nothing.
func (r Ref) IsZero() bool { return r.ID == "" && r.Name == "" }

func (r Ref) String() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// ListFilter narrows Registry.List.
type ListFilter struct {
	ActiveOnly bool
	SystemOnly bool
	Channel    string
	Category   string
}

func (f ListFilter) match(t Template) bool {
	switch {
	case f.ActiveOnly && !t.IsActive:
		return false
	case f.SystemOnly && !t.IsSystem:
		return false
	case f.Channel != "" && t.Channel != f.Channel:
		return false
	case f.Category != "" && t.Category != f.Category:
		return false
	}
	return true
}
