package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeGenerator_Window(t *testing.T) {
	sent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen, err := NewCodeGenerator(testSecret, WithCodeClock(fixedClock(sent)))
	require.NoError(t, err)

	code, err := gen.Generate("13800138000")
	require.NoError(t, err)
	require.Len(t, code, 6)

	tests := []struct {
		name  string
		after time.Duration
		want  bool
	}{
		{"immediately", 0, true},
		{"within window", 4 * time.Minute, true},
		{"next window", 6 * time.Minute, true},
		{"two windows later", 11 * time.Minute, false},
		{"an hour later", time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := NewCodeGenerator(testSecret, WithCodeClock(fixedClock(sent.Add(tt.after))))
			require.NoError(t, err)
			assert.Equal(t, tt.want, check.Validate("13800138000", code))
		})
	}
}

func TestCodeGenerator_BoundToPhoneAndSecret(t *testing.T) {
	now := fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gen, err := NewCodeGenerator(testSecret, WithCodeClock(now))
	require.NoError(t, err)

	a, err := gen.Generate("13800138000")
	require.NoError(t, err)
	b, err := gen.Generate("13900139000")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	other, err := NewCodeGenerator("a-completely-different-secret-value", WithCodeClock(now))
	require.NoError(t, err)
	c, err := other.Generate("13800138000")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	assert.False(t, gen.Validate("13800138000", "12345"))
	assert.False(t, gen.Validate("13800138000", ""))
}

func TestNewCodeGenerator_EmptySecret(t *testing.T) {
	_, err := NewCodeGenerator("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(48)
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, err := GenerateSecret(48)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = GenerateSecret(16)
	require.ErrorIs(t, err, ErrSecretTooShort)

	_, err = GenerateSecret(0)
	require.Error(t, err)
}
