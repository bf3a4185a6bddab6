package template

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
)

var (
	// tokenRe matches anything written as a placeholder; placeholderRe only
	// the well-formed ones Render can substitute.
	tokenRe       = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
	placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)
	nameRe        = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// Processor validates template definitions and renders templates.
// It is stateless and safe for concurrent use.
type Processor struct {
	logger *slog.Logger
	locale language.Tag
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger for the Processor.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDefaultLocale sets the locale used when Render is given none.
func WithDefaultLocale(tag language.Tag) Option {
	return func(p *Processor) { p.locale = tag }
}

// NewProcessor creates a Processor using American English by default.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{logger: slog.Default(), locale: language.AmericanEnglish}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Placeholders returns the distinct placeholder names in s, in order of
// first appearance. Names are trimmed but not checked; see ValidName.
func Placeholders(s string) []string {
	var names []string
	for _, m := range tokenRe.FindAllStringSubmatch(s, -1) {
		name := strings.TrimSpace(m[1])
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// ValidName reports whether name can be used as a template variable.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// ValidateDefinition fails when title or message contains a malformed
// placeholder or one that is not declared in variables, or when a declared
// variable name is malformed. Declared variables that are never used only
// produce a warning.
func (p *Processor) ValidateDefinition(ctx context.Context, title, message string, variables []string) error {
	used := Placeholders(title + "\n" + message)

	invalid := apperr.NewValidationError(ErrInvalidPlaceholder)
	for _, name := range used {
		if !ValidName(name) {
			invalid.Add("variables", fmt.Sprintf("placeholder {{%s}} is not a valid variable name", name))
		}
	}
	for _, name := range variables {
		if !ValidName(name) {
			invalid.Add("variables", fmt.Sprintf("variable %q is not a valid name", name))
		}
	}
	if len(invalid.Fields) > 0 {
		return invalid
	}

	verr := apperr.NewValidationError(ErrUndeclaredVariable)
	for _, name := range used {
		if !slices.Contains(variables, name) {
			verr.Add("variables", fmt.Sprintf("placeholder {{%s}} is not declared", name))
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}

	var unused []string
	for _, v := range variables {
		if !slices.Contains(used, v) {
			unused = append(unused, v)
		}
	}
	if len(unused) > 0 {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "template declares unused variables",
			logger.Component("template"),
			slog.Any("unused", unused),
		)
	}
	return nil
}

// Render substitutes every declared variable using the default locale.
func (p *Processor) Render(tpl Template, values map[string]any) (Rendered, error) {
	return p.RenderLocale(tpl, values, p.locale)
}

// RenderLocale substitutes every declared variable, formatting dates and
// numbers for tag. Every declared variable must be present in values (a nil
// value renders as empty). Rendering fails if any placeholder survives.
func (p *Processor) RenderLocale(tpl Template, values map[string]any, tag language.Tag) (Rendered, error) {
	verr := apperr.NewValidationError(ErrMissingVariable)
	for _, name := range tpl.Variables {
		if _, ok := values[name]; !ok {
			verr.Add(name, "value is required")
		}
	}
	if len(verr.Fields) > 0 {
		return Rendered{}, verr
	}

	printer := message.NewPrinter(tag)
	replace := func(s string) string {
		return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
			name := placeholderRe.FindStringSubmatch(match)[1]
			v, ok := values[name]
			if !ok || !slices.Contains(tpl.Variables, name) {
				return match
			}
			return formatValue(printer, tag, v)
		})
	}

	out := Rendered{
		Title:   replace(tpl.Title),
		Message: replace(tpl.Message),
		Values:  values,
	}

	if tokenRe.MatchString(out.Title) || tokenRe.MatchString(out.Message) {
		return Rendered{}, apperr.Validationf(ErrUnresolvedPlaceholder, "template",
			"template %q left unresolved placeholders", tpl.Name)
	}
	return out, nil
}

func formatValue(printer *message.Printer, tag language.Tag, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(dateLayout(tag))
	case *time.Time:
		if x == nil || x.IsZero() {
			return ""
		}
		return x.Format(dateLayout(tag))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return printer.Sprintf("%v", x)
	case bool:
		return strconv.FormatBool(x)
	case []byte:
		return string(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// dateLayout approximates the short date form of the locale.
func dateLayout(tag language.Tag) string {
	base, _ := tag.Base()
	region, _ := tag.Region()

	switch base.String() {
	case "en":
		if region.String() == "US" {
			return "1/2/2006"
		}
		return "02/01/2006"
	case "de", "ru", "pl", "uk", "cs", "fi", "nb", "tr":
		return "02.01.2006"
	case "fr", "es", "it", "pt", "el":
		return "02/01/2006"
	case "nl":
		return "02-01-2006"
	case "ja", "zh", "ko", "hu":
		return "2006/01/02"
	}
	return "2006-01-02"
}

// ParseLocale parses a BCP 47 tag, returning fallback when s is empty or invalid.
func ParseLocale(s string, fallback language.Tag) language.Tag {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	tag, err := language.Parse(s)
	if err != nil {
		return fallback
	}
	return tag
}
