package password

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsStrongPasswords(t *testing.T) {
	for _, pw := range []string{
		"Abcdef1!",
		"correct-Horse9battery@",
		"ZZZZzzzz0000$$$$",
		"Pässwörd1&",
	} {
		assert.NoError(t, Validate(pw), pw)
	}
}

func TestValidate_ReportsFirstViolatedRule(t *testing.T) {
	tests := []struct {
		password string
		want     Rule
	}{
		// Each fails exactly one rule.
		{"Abcde1!", RuleMinLength},
		{"ABCDEF1!", RuleLowercase},
		{"abcdef1!", RuleUppercase},
		{"Abcdefg!", RuleDigit},
		{"Abcdefg1", RuleSpecial},

		// Several violations: the earliest rule wins.
		{"", RuleMinLength},
		{"abc", RuleMinLength},
		{"12345678", RuleLowercase},
		{"abcdefgh", RuleUppercase},
		{"ABCDefgh", RuleDigit},
		{"Abcdefg#1", RuleSpecial},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := Validate(tt.password)
			var pe *PolicyError
			require.True(t, errors.As(err, &pe), "want *PolicyError, got %v", err)
			assert.Equal(t, tt.want, pe.Rule)
			assert.NotEmpty(t, pe.Error())
		})
	}
}

func TestValidate_DeterministicMessages(t *testing.T) {
	first := Validate("abcdefgh").Error()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Validate("abcdefgh").Error())
	}
	assert.Contains(t, Validate("Abcdefg1").Error(), SpecialChars)
}

func TestValidate_LengthCountsCharacters(t *testing.T) {
	// Seven multi-byte characters are more than eight bytes but still too short.
	pw := "Aé1!ééé"
	require.Greater(t, len(pw), MinLength)
	var pe *PolicyError
	require.ErrorAs(t, Validate(pw), &pe)
	assert.Equal(t, RuleMinLength, pe.Rule)
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, "min_length", RuleMinLength.String())
	assert.Equal(t, "special", RuleSpecial.String())
	assert.Equal(t, "rule(42)", Rule(42).String())
}

func TestHasher_Deterministic(t *testing.T) {
	h := NewHasher(1000)
	salt, err := h.NewSalt()
	require.NoError(t, err)

	a := h.Hash("Abcdef1!", salt)
	b := h.Hash("Abcdef1!", salt)
	assert.Equal(t, a, b)
	assert.Len(t, a, KeyLength*2)
}

func TestHasher_FreshSaltsDiffer(t *testing.T) {
	h := NewHasher(1000)
	s1, err := h.NewSalt()
	require.NoError(t, err)
	s2, err := h.NewSalt()
	require.NoError(t, err)

	assert.Len(t, s1, SaltBytes*2)
	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, h.Hash("Abcdef1!", s1), h.Hash("Abcdef1!", s2))
}

func TestHasher_Verify(t *testing.T) {
	h := NewHasher(1000)
	salt, _ := h.NewSalt()
	stored := h.Hash("Abcdef1!", salt)

	assert.True(t, h.Verify("Abcdef1!", salt, stored))
	assert.False(t, h.Verify("Abcdef1?", salt, stored))
	assert.False(t, h.Verify("", salt, stored))

	otherSalt, _ := h.NewSalt()
	assert.False(t, h.Verify("Abcdef1!", otherSalt, stored))
}

func TestHasher_VerifyRejectsMalformedHash(t *testing.T) {
	h := NewHasher(1000)
	assert.False(t, h.Verify("Abcdef1!", "salt", "not-hex"))
	assert.False(t, h.Verify("Abcdef1!", "salt", strings.Repeat("ab", 8)))
	assert.False(t, h.Verify("Abcdef1!", "salt", ""))
}

func TestHasher_IterationsMatter(t *testing.T) {
	salt := strings.Repeat("00", SaltBytes)
	assert.NotEqual(t, NewHasher(1000).Hash("Abcdef1!", salt), NewHasher(1001).Hash("Abcdef1!", salt))
}

func TestNewHasher_ClampsIterations(t *testing.T) {
	assert.Equal(t, 1, NewHasher(0).iterations)
	assert.Equal(t, DefaultIterations, Default().iterations)
}
