package objectkey

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimePrefixedGenerator(t *testing.T) {
	gen := NewTimePrefixedGenerator("images")
	gen.Now = func() time.Time {
		return time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	}

	key := gen.GenerateKey(&KeyMetadata{FileName: "My Photo.JPG"})

	pattern := regexp.MustCompile(`^images/2024/03/07/\d+-[0-9a-f]{12}-My_Photo\.JPG$`)
	assert.Regexp(t, pattern, key)
}

func TestTimePrefixedGenerator_Unique(t *testing.T) {
	gen := NewTimePrefixedGenerator("")
	fixed := time.Now()
	gen.Now = func() time.Time { return fixed }

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		key := gen.GenerateKey(&KeyMetadata{FileName: "same.png"})
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %s", key)
		seen[key] = struct{}{}
	}
}

func TestTimePrefixedGenerator_DefaultsAndTrimming(t *testing.T) {
	assert.Equal(t, DefaultPrefix, NewTimePrefixedGenerator("").Prefix)
	assert.Equal(t, "a/b", NewTimePrefixedGenerator("/a/b/").Prefix)

	key := NewTimePrefixedGenerator("x").GenerateKey(nil)
	assert.Regexp(t, `-upload$`, key)
}

func TestSanitizeBaseName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "photo.png", expected: "photo.png"},
		{name: "spaces", input: "my photo.png", expected: "my_photo.png"},
		{name: "unix path", input: "../../etc/passwd", expected: "passwd"},
		{name: "windows path", input: `C:\Users\bo\pic.gif`, expected: "pic.gif"},
		{name: "hidden file", input: ".env", expected: "env"},
		{name: "special chars", input: `a:b*c?"<>|.jpg`, expected: "a_b_c_____.jpg"},
		{name: "unicode", input: "café.jpg", expected: "caf_.jpg"},
		{name: "dot", input: ".", expected: "upload"},
		{name: "only dots", input: "...", expected: "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeBaseName(tt.input))
		})
	}
}

func TestSanitizeBaseName_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := SanitizeBaseName(long + ".png")
	assert.Len(t, got, maxBaseNameLen)
	assert.Regexp(t, `\.png$`, got)
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(m *KeyMetadata) string {
		return "fixed/" + m.FileName
	})
	assert.Equal(t, "fixed/a.png", gen.GenerateKey(&KeyMetadata{FileName: "a.png"}))
}
