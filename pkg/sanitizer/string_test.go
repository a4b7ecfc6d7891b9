package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"hello", "hello"},
		{"  hello  ", "hello"},
		{"hello   world", "hello world"},
		{"hello\t\nworld", "hello world"},
		{" a  b\tc ", "a b c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrimAndNormalize(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeFieldTitlePreservesCase(t *testing.T) {
	assert.Equal(t, "T-Shirt Size", NormalizeFieldTitle("  T-Shirt   Size "))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane.doe@example.com", NormalizeEmail("  Jane.Doe@Example.COM "))
}
