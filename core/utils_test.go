package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Hello", CleanString("  Hello \n"))
	assert.Equal(t, "hello", CleanString("  Hello \n", true))
	assert.Equal(t, "", CleanString("   "))
	assert.Equal(t, "Intro to Go", CleanString(" Intro  to\tGo "))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "First line.\n\n  - second  line", CleanText("\n First line.\n\n  - second  line \n"))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "Go for Beginners", want: "go-for-beginners"},
		{in: "  Rust: 2nd edition!  ", want: "rust-2nd-edition"},
		{in: "already-a-slug", want: "already-a-slug"},
		{in: "snake_case title", want: "snake-case-title"},
		{in: "Café au lait", want: "cafe-au-lait"},
		{in: "Émile Zola", want: "emile-zola"},
		{in: "---", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestAllowedOrderings(t *testing.T) {
	allowed := map[string]string{"title": "title", "created_at": "created_at"}
	got := AllowedOrderings([]DBOrdering{
		{Field: "title", Ascending: true},
		{Field: "password_hash"},
		{Field: "created_at"},
	}, allowed)
	assert.Equal(t, []DBOrdering{{Field: "title", Ascending: true}, {Field: "created_at"}}, got)
	assert.Nil(t, AllowedOrderings(nil, allowed))
	assert.Equal(t, "title ASC", got[0].String())
	assert.Equal(t, "created_at DESC", got[1].String())
}
