package validator

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	// E.164 phone numbers.
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

	// 24h clock, zero-padded: 00:00..23:59.
	timeOfDayRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// ValidEmail validates an address using the RFC 5322 parser and requires a dotted domain.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(strings.TrimSpace(value))
			if err != nil {
				return false
			}
			at := strings.LastIndex(addr.Address, "@")
			if at < 1 {
				return false
			}
			domain := addr.Address[at+1:]
			return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid email address",
			TranslationKey: "validation.email",
		},
	}
}

// ValidURL validates an absolute URL with scheme and host.
func ValidURL(field, value string) Rule {
	return Rule{
		Check: func() bool {
			u, err := url.ParseRequestURI(strings.TrimSpace(value))
			if err != nil {
				return false
			}
			return u.Scheme != "" && u.Host != ""
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid URL",
			TranslationKey: "validation.url",
		},
	}
}

// ValidPhone checks for up to 15 digits with an optional leading plus.
func ValidPhone(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return phoneRegex.MatchString(value)
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid phone number",
			TranslationKey: "validation.phone",
		},
	}
}

// ValidTimeOfDay validates a zero-padded 24h "HH:MM" value.
func ValidTimeOfDay(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return timeOfDayRegex.MatchString(value)
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a time in HH:MM format",
			TranslationKey: "validation.time_of_day",
		},
	}
}

// ValidTimezone validates an IANA zone name such as "Europe/Lisbon".
func ValidTimezone(field, value string) Rule {
	return Rule{
		Check: func() bool {
			_, err := time.LoadLocation(value)
			return err == nil
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid IANA timezone",
			TranslationKey: "validation.timezone",
		},
	}
}
