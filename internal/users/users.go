package users

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Entry is one platform account registered under a source's API key.
type Entry struct {
	APIKey    string
	ID        string
	Handle    string
	Name      string
	CreatedAt time.Time
}

// Directory is the set of accounts registered for one source.
type Directory []Entry

// Match returns the first entry whose name or handle matches one of the
// artist names, checked in artist order.
func (d Directory) Match(artistNames ...string) (Entry, bool) {
	for _, artist := range artistNames {
		want := FoldName(artist)
		if want == "" {
			continue
		}
		for _, entry := range d {
			if FoldName(entry.Name) == want || FoldName(entry.Handle) == want {
				return entry, true
			}
		}
	}
	return Entry{}, false
}

// FoldName reduces a name to lowercase letters and digits with diacritics
// removed, so "Beyoncé", "beyonce" and "BEYONCE!" compare equal.
func FoldName(name string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(stripped)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
