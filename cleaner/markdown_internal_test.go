package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"code markers become fences", "[code]\nfmt.Println()\n[/code]", "```\nfmt.Println()\n```"},
		{"markers are case-insensitive", "intro\n  [CODE]  \nx := 1\n[/CODE]\n", "intro\n```\nx := 1\n```"},
		{"surrounding whitespace is trimmed", "\n\n  text  \n\n", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, postProcess(tt.in))
		})
	}
}
