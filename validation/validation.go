package validation

import (
	"errors"
	"sort"
	"strings"
)

// ErrInvalid is matched by every Violations value returned as an error.
var ErrInvalid = errors.New("validation failed")

// Violations maps a field name to a violation code ("required", "must_be_non_negative", ...).
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there is nothing to report, otherwise v as an error.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

// Error lists violations in field order so messages are stable.
func (v Violations) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (v Violations) Is(target error) bool { return target == ErrInvalid }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v[field] = "must_be_non_negative"
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}
