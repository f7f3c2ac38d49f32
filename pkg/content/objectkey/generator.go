package objectkey

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "images"

const maxBaseNameLen = 96

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates a key that is unique for every call
	GenerateKey(metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
}

// TimePrefixedGenerator produces keys of the form
// <prefix>/yyyy/mm/dd/<unix-nanos>-<random>-<sanitized-basename>.
// The random segment keeps repeated uploads of the same file name apart even
// within one clock tick.
type TimePrefixedGenerator struct {
	Prefix string
	Now    func() time.Time
}

func NewTimePrefixedGenerator(prefix string) *TimePrefixedGenerator {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &TimePrefixedGenerator{
		Prefix: prefix,
		Now:    time.Now,
	}
}

func (g *TimePrefixedGenerator) GenerateKey(metadata *KeyMetadata) string {
	now := g.Now().UTC()
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	name := "upload"
	if metadata != nil && metadata.FileName != "" {
		name = SanitizeBaseName(metadata.FileName)
	}

	return fmt.Sprintf("%s/%s/%d-%s-%s", g.Prefix, now.Format("2006/01/02"), now.UnixNano(), random, name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(metadata *KeyMetadata) string {
	return g.GenerateFunc(metadata)
}

// SanitizeBaseName strips any directory part from a client-supplied file name
// and replaces characters that are unsafe in object keys or file paths.
func SanitizeBaseName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		return "upload"
	}
	if utf8.RuneCountInString(name) > maxBaseNameLen {
		name = name[len(name)-maxBaseNameLen:]
	}
	return name
}
