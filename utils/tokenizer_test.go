package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		delims string
		want   []string
	}{
		{"single delimiter", "a b c", " ", []string{"a", "b", "c"}},
		{"runs collapse", "  a   b  ", " ", []string{"a", "b"}},
		{"any delimiter rune", "a,b;c d", ",; ", []string{"a", "b", "c", "d"}},
		{"newline terminated command", "/kick 3\n", " \n", []string{"/kick", "3"}},
		{"only delimiters", " \t \n", " \t\n", []string{}},
		{"empty input", "", " ", []string{}},
		{"no delimiters", "word", "", []string{"word"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input, tt.delims)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeN(t *testing.T) {
	t.Run("last token keeps inner spacing", func(t *testing.T) {
		got := TokenizeN("/send 2 hello  world\n", " ", 3)
		assert.Equal(t, []string{"/send", "2", "hello  world\n"}, got)
	})

	t.Run("fewer tokens than the limit", func(t *testing.T) {
		assert.Equal(t, []string{"/clients"}, TokenizeN("  /clients", " ", 3))
	})

	t.Run("limit of one returns the trimmed input", func(t *testing.T) {
		assert.Equal(t, []string{"a b c"}, TokenizeN("  a b c", " ", 1))
	})

	t.Run("no limit behaves like Tokenize", func(t *testing.T) {
		assert.Equal(t, Tokenize("a b  c", " "), TokenizeN("a b  c", " ", 0))
	})

	t.Run("trailing delimiters yield no empty token", func(t *testing.T) {
		assert.Equal(t, []string{"/send", "2"}, TokenizeN("/send 2   ", " ", 3))
	})
}
