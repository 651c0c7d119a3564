package idempotency

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Keys are client-supplied and end up embedded in cache keys, so the
// character set is restricted up front. Construction through ParseKey is the
// only validation point; a zero Key is never valid.
const (
	maxKeyLength  = 50 // exclusive upper bound
	forbiddenSet  = "/()\"<>\\{}$"
	RuleEmpty     = "empty"
	RuleTooLong   = "too_long"
	RuleForbidden = "forbidden_character"
)

// Key is an opaque, validated idempotency key.
type Key struct {
	value string
}

// ValidationError names the rule a candidate key violated.
type ValidationError struct {
	Rule string
	Char rune // set only for RuleForbidden
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case RuleEmpty:
		return "idempotency key must not be empty"
	case RuleTooLong:
		return fmt.Sprintf("idempotency key must be shorter than %d characters", maxKeyLength)
	case RuleForbidden:
		return fmt.Sprintf("idempotency key must not contain %q", e.Char)
	default:
		return "invalid idempotency key"
	}
}

// ParseKey validates raw and returns the opaque key. Length is counted in
// characters, not bytes: at least 1 and strictly less than 50. None of
// / ( ) " < > \ { } $ may appear.
func ParseKey(raw string) (Key, error) {
	if len(raw) == 0 {
		return Key{}, &ValidationError{Rule: RuleEmpty}
	}
	if utf8.RuneCountInString(raw) >= maxKeyLength {
		return Key{}, &ValidationError{Rule: RuleTooLong}
	}
	if idx := strings.IndexAny(raw, forbiddenSet); idx >= 0 {
		return Key{}, &ValidationError{Rule: RuleForbidden, Char: rune(raw[idx])}
	}
	return Key{value: raw}, nil
}

// String returns the validated key text.
func (k Key) String() string { return k.value }

// IsZero reports whether the key was never constructed through ParseKey.
func (k Key) IsZero() bool { return k.value == "" }
