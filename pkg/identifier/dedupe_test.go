package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe(t *testing.T) {
	cases := []struct {
		name  string
		input []string
		want  []string
	}{
		{"empty", []string{}, []string{}},
		{"all unique", []string{"id", "name", "total"}, []string{"id", "name", "total"}},
		{"simple duplicate", []string{"x", "x"}, []string{"x", "x_"}},
		{"triple duplicate", []string{"x", "x", "x"}, []string{"x", "x_", "x__"}},
		{"collision with chosen name", []string{"x", "x_", "x"}, []string{"x", "x_", "x__"}},
		{"duplicate after unique", []string{"a", "b", "a"}, []string{"a", "b", "a_"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Dedupe(tc.input))
		})
	}
}

func TestDedupePreservesLengthAndUniqueness(t *testing.T) {
	input := []string{"a", "b", "a", "b", "a_", "c"}
	got := Dedupe(input)

	require.Len(t, got, len(input))
	seen := make(map[string]struct{})
	for _, name := range got {
		_, dup := seen[name]
		assert.False(t, dup, "duplicate name %q in output %v", name, got)
		seen[name] = struct{}{}
	}
	// Originally unique first occurrences stay in place unchanged.
	assert.Equal(t, "a", got[0])
	assert.Equal(t, "b", got[1])
	assert.Equal(t, "c", got[5])
}

func TestDedupeDeterministic(t *testing.T) {
	input := []string{"x", "x", "y", "x", "y"}
	first := Dedupe(input)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Dedupe(input))
	}
}
