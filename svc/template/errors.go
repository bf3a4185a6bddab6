package template

import "errors"

var (
	ErrTemplateNotFound      = errors.New("template not found")
	ErrDuplicateName         = errors.New("template name already exists")
	ErrSystemTemplate        = errors.New("system templates cannot be deleted or renamed")
	ErrTemplateInactive      = errors.New("template is inactive")
	ErrUndeclaredVariable    = errors.New("template uses an undeclared variable")
	ErrInvalidPlaceholder    = errors.New("template has a malformed placeholder")
	ErrMissingVariable       = errors.New("template variable value is missing")
	ErrUnresolvedPlaceholder = errors.New("template has unresolved placeholders")
	ErrInvalidSeed           = errors.New("invalid template seed file")
)
