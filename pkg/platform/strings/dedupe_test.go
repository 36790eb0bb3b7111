package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil stays nil", in: nil, want: nil},
		{name: "trims whitespace", in: []string{"  registrar_head ", "principal"}, want: []string{"registrar_head", "principal"}},
		{name: "drops empties", in: []string{"", "   ", "admin"}, want: []string{"admin"}},
		{name: "removes duplicates preserving order", in: []string{"a", "b", "a", "c", "b"}, want: []string{"a", "b", "c"}},
		{name: "duplicate after trim", in: []string{"admin", " admin "}, want: []string{"admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.in))
		})
	}
}
