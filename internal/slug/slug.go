// Package slug derives URL-safe identifiers from bilingual entity fields and resolves them back
// to entities.
//
// A slug has the grammar namePart["--"secondaryPart]. Both parts are normalised so that neither
// can contain a double hyphen, which keeps the separator unambiguous.
package slug

import (
	"strings"
	"unicode"
)

// Separator joins the name part and the secondary part of a slug.
const Separator = "--"

const (
	secondaryWordLimit = 3
	fallbackIDLength   = 8
)

// Fields carries the entity attributes the codec reads.
type Fields struct {
	Kind        string
	ID          string
	NameEn      string
	NameAr      string
	SecondaryEn string
	SecondaryAr string
}

// Sluggable is implemented by every entity that can be addressed by slug.
type Sluggable interface {
	SlugFields() Fields
}

// Normalize lowercases s, drops every character outside [a-z0-9], whitespace and hyphen, turns
// whitespace runs into single hyphens, collapses hyphen runs and trims hyphens at both ends.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}
	return b.String()
}

// NamePart returns the normalised primary name, preferring English over Arabic.
func NamePart(f Fields) string {
	return Normalize(prefer(f.NameEn, f.NameAr))
}

// SecondaryPart returns the first three words of the disambiguating field that survive
// normalisation, hyphen-joined. Words made only of dropped characters do not count.
func SecondaryPart(f Fields) string {
	words := make([]string, 0, secondaryWordLimit)
	for _, word := range strings.Fields(prefer(f.SecondaryEn, f.SecondaryAr)) {
		if word = Normalize(word); word == "" {
			continue
		}
		words = append(words, word)
		if len(words) == secondaryWordLimit {
			break
		}
	}
	return strings.Join(words, "-")
}

// Encode derives the slug for entity.
func Encode(entity Sluggable) string {
	return encodeFields(entity.SlugFields())
}

func encodeFields(f Fields) string {
	name := NamePart(f)
	secondary := SecondaryPart(f)
	switch {
	case name != "" && secondary != "":
		return name + Separator + secondary
	case name != "":
		return name
	case secondary != "":
		return secondary
	}
	return fallback(f)
}

func fallback(f Fields) string {
	kind := strings.TrimSpace(f.Kind)
	id := strings.TrimSpace(f.ID)
	if id == "" {
		return kind
	}
	if runes := []rune(id); len(runes) > fallbackIDLength {
		id = string(runes[:fallbackIDLength])
	}
	return kind + "-" + id
}

// Resolve returns the first entity in iteration order whose slug matches s. A one part slug
// matches on the name part alone and a two part slug on both parts. When no derived slug matches,
// s is compared against raw entity ids so links that embed an id keep working.
func Resolve[T Sluggable](s string, entities []T) (T, bool) {
	var zero T
	if strings.TrimSpace(s) == "" {
		return zero, false
	}

	parts := strings.Split(s, Separator)
	for _, entity := range entities {
		fields := entity.SlugFields()
		if encodeFields(fields) == s {
			return entity, true
		}
		switch len(parts) {
		case 1:
			if NamePart(fields) == parts[0] {
				return entity, true
			}
		case 2:
			if NamePart(fields) == parts[0] && SecondaryPart(fields) == parts[1] {
				return entity, true
			}
		}
	}

	for _, entity := range entities {
		if entity.SlugFields().ID == s {
			return entity, true
		}
	}
	return zero, false
}

func prefer(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}
