package facility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name     string
		facility string
		expected string
	}{
		{name: "Canonical name", facility: "Kovvur Plant-1", expected: "K1"},
		{name: "Alias spelling", facility: "FDB Plant-1", expected: "B1"},
		{name: "Case insensitive", facility: "bandapuram plant-2", expected: "B2"},
		{name: "Unknown facility sentinel", facility: "Mystery Plant", expected: UnknownCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Code(tt.facility))
		})
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "Bandapuram Plant-1", Canonical("fdb plant-1"))
	assert.Equal(t, "Kovvur Plant-1", Canonical("Kovvuru  Plant-1"))
	assert.Equal(t, "Somewhere Else", Canonical(" Somewhere Else "))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("FDB Plant-1", "Bandapuram Plant-1"))
	assert.True(t, Match("Kovvur Plant-1", "KOVVUR PLANT-1"))
	assert.True(t, Match("Bandapuram Plant-1", "Bandapuram"))
	assert.False(t, Match("Kovvur Plant-1", "Bandapuram Plant-1"))
	assert.False(t, Match("", "Kovvur Plant-1"))
}
