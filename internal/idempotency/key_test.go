package idempotency

import (
	"errors"
	"strings"
	"testing"
)

func TestParseKeyAcceptsValidKeys(t *testing.T) {
	for _, raw := range []string{
		"a",
		"abc123",
		"retry-2024-01-02T15:04:05Z",
		"key_with.dots-and_underscores",
		strings.Repeat("x", 49),
		// 49 characters, 98 bytes: the limit counts characters.
		strings.Repeat("é", 49),
	} {
		key, err := ParseKey(raw)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", raw, err)
		}
		if key.String() != raw {
			t.Fatalf("key text mangled: %q != %q", key.String(), raw)
		}
		if key.IsZero() {
			t.Fatalf("valid key reported zero: %q", raw)
		}
	}
}

func TestParseKeyRejectsInvalidKeys(t *testing.T) {
	cases := []struct {
		raw  string
		rule string
	}{
		{"", RuleEmpty},
		{strings.Repeat("x", 50), RuleTooLong},
		{strings.Repeat("x", 120), RuleTooLong},
		{strings.Repeat("é", 50), RuleTooLong},
		{"a/b", RuleForbidden},
		{"call(now)", RuleForbidden},
		{`say"hi"`, RuleForbidden},
		{"<script>", RuleForbidden},
		{`back\slash`, RuleForbidden},
		{"{braces}", RuleForbidden},
		{"pri$e", RuleForbidden},
	}
	for _, tc := range cases {
		_, err := ParseKey(tc.raw)
		if err == nil {
			t.Fatalf("ParseKey(%q): expected error", tc.raw)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("ParseKey(%q): expected ValidationError, got %T", tc.raw, err)
		}
		if verr.Rule != tc.rule {
			t.Fatalf("ParseKey(%q): rule %q, want %q", tc.raw, verr.Rule, tc.rule)
		}
	}
}
