package deb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0-1", "1.0-1", 0},
		{"1.0-1", "1.0-2", -1},
		{"2.0-1", "1.9-1", 1},
		{"1.0~rc1-1", "1.0-1", -1},     // tilde sorts before everything
		{"1:1.0-1", "2.0-1", 1},        // epoch wins
		{"1.10-1", "1.9-1", 1},         // numeric, not lexical
		{"garbage_", "also garbage", 1}, // unparseable falls back to lexical
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("1.2.3-4"))
	assert.True(t, Valid("2:1.0~beta1-0ubuntu1"))
	assert.False(t, Valid(""))
}
