// Package template holds notification templates and renders them.
//
// A template is a title and message containing {{variable}} placeholders
// together with the list of variables it declares. ValidateDefinition rejects
// definitions that use undeclared placeholders and warns about declared ones
// that are never used. Render requires a value for every declared variable
// and refuses to return output that still contains a placeholder.
//
// Registry adds persistence through a Store: unique names, protected system
// templates seeded from YAML, and lookup by id or name.
package template
