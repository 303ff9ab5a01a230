// Package password implements the admin password strength policy and the
// salted key derivation used to store and verify the admin password.
package password

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MinLength is the minimum password length in characters.
	MinLength = 8
	// SpecialChars is the set of which at least one must appear.
	SpecialChars = "@$!%*?&"
)

// Rule identifies one strength requirement. Rules are evaluated in ascending
// order and validation stops at the first failure.
type Rule int

const (
	RuleMinLength Rule = iota + 1
	RuleLowercase
	RuleUppercase
	RuleDigit
	RuleSpecial
)

func (r Rule) String() string {
	switch r {
	case RuleMinLength:
		return "min_length"
	case RuleLowercase:
		return "lowercase"
	case RuleUppercase:
		return "uppercase"
	case RuleDigit:
		return "digit"
	case RuleSpecial:
		return "special"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// PolicyError reports the first strength rule a password violates.
type PolicyError struct {
	Rule   Rule
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

type check struct {
	rule   Rule
	reason string
	ok     func(string) bool
}

var checks = []check{
	{RuleMinLength, fmt.Sprintf("Password must be at least %d characters", MinLength), func(p string) bool {
		return utf8.RuneCountInString(p) >= MinLength
	}},
	{RuleLowercase, "Password must contain a lowercase letter", func(p string) bool {
		return containsRange(p, 'a', 'z')
	}},
	{RuleUppercase, "Password must contain an uppercase letter", func(p string) bool {
		return containsRange(p, 'A', 'Z')
	}},
	{RuleDigit, "Password must contain a digit", func(p string) bool {
		return containsRange(p, '0', '9')
	}},
	{RuleSpecial, "Password must contain a special character (" + SpecialChars + ")", func(p string) bool {
		return strings.ContainsAny(p, SpecialChars)
	}},
}

// Validate checks password against the strength rules in order and returns a
// *PolicyError for the first rule it fails, or nil.
func Validate(password string) error {
	for _, c := range checks {
		if !c.ok(password) {
			return &PolicyError{Rule: c.rule, Reason: c.reason}
		}
	}
	return nil
}

func containsRange(s string, lo, hi rune) bool {
	for _, r := range s {
		if r >= lo && r <= hi {
			return true
		}
	}
	return false
}
