// Package directory resolves card holders by card identity.
package directory

import (
	// Go Internal Packages
	"context"
	"fmt"
	"strings"
	"unicode"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningMarks is the Combining Diacritical Marks block.
var combiningMarks = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// Normalize strips diacritics and surrounding whitespace from a holder name.
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningMarks)), norm.NFC)
	out, _, err := transform.String(t, name)
	if err != nil {
		out = name
	}
	return strings.TrimSpace(out)
}

type Holder struct {
	ID   uint64 `koanf:"id"`
	Name string `koanf:"name"`
}

// Static is a read-only in-memory directory.
type Static struct {
	holders map[models.CardIdentity]string
}

func NewStatic(holders map[models.CardIdentity]string) *Static {
	cp := make(map[models.CardIdentity]string, len(holders))
	for id, name := range holders {
		cp[id] = name
	}
	return &Static{holders: cp}
}

// LoadStatic reads a YAML file of the form
//
//	holders:
//	  - id: 1304277437743248
//	    name: Alice
func LoadStatic(path string) (*Static, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load holders file: %w", err)
	}

	var list []Holder
	if err := k.Unmarshal("holders", &list); err != nil {
		return nil, fmt.Errorf("failed to parse holders file: %w", err)
	}

	holders := make(map[models.CardIdentity]string, len(list))
	for _, h := range list {
		holders[models.CardIdentity(h.ID)] = h.Name
	}
	return &Static{holders: holders}, nil
}

func (s *Static) Lookup(_ context.Context, id models.CardIdentity) (string, bool, error) {
	name, ok := s.holders[id]
	return name, ok, nil
}

func (s *Static) Len() int {
	return len(s.holders)
}
