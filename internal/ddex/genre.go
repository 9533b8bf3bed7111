package ddex

import (
	"strings"

	"golang.org/x/text/cases"
)

// Genre is a platform genre name.
type Genre string

// GenreAll is the catch-all genre used when nothing better resolves.
const GenreAll Genre = "All Genres"

// Genres lists the platform's supported genres.
var Genres = []Genre{
	"Electronic", "Rock", "Metal", "Alternative", "Hip-Hop/Rap", "Experimental",
	"Punk", "Folk", "Pop", "Ambient", "Soundtrack", "World", "Jazz", "Acoustic",
	"Funk", "R&B/Soul", "Devotional", "Classical", "Reggae", "Podcasts", "Country",
	"Spoken Word", "Comedy", "Blues", "Kids", "Audiobooks", "Latin", "Lo-Fi",
	"Hyperpop", "Dancehall", "Techno", "Trap", "House", "Tech House", "Deep House",
	"Disco", "Electro", "Jungle", "Progressive House", "Hardstyle", "Glitch Hop",
	"Trance", "Future Bass", "Future House", "Tropical House", "Downtempo",
	"Drum & Bass", "Dubstep", "Jersey Club", "Vaporwave", "Moombahton",
}

// genreAliases maps common label vocabulary onto platform genres.
var genreAliases = map[string]Genre{
	"hip hop":           "Hip-Hop/Rap",
	"hip-hop":           "Hip-Hop/Rap",
	"hip hop/rap":       "Hip-Hop/Rap",
	"rap":               "Hip-Hop/Rap",
	"r&b":               "R&B/Soul",
	"rnb":               "R&B/Soul",
	"soul":              "R&B/Soul",
	"dance":             "Electronic",
	"electronica":       "Electronic",
	"edm":               "Electronic",
	"drum and bass":     "Drum & Bass",
	"drum n bass":       "Drum & Bass",
	"singer/songwriter": "Acoustic",
	"christian":         "Devotional",
	"gospel":            "Devotional",
	"children's music":  "Kids",
	"soundtracks":       "Soundtrack",
	"alternative rock":  "Alternative",
	"indie":             "Alternative",
}

var genreIndex = func() map[string]Genre {
	index := make(map[string]Genre, len(Genres))
	for _, g := range Genres {
		index[foldGenre(string(g))] = g
	}
	return index
}()

// ToGenre resolves free text to a platform genre: exact case-insensitive
// match first, then the alias table.
func ToGenre(text string) (Genre, bool) {
	key := foldGenre(text)
	if key == "" {
		return "", false
	}
	if g, ok := genreIndex[key]; ok {
		return g, true
	}
	if g, ok := genreAliases[key]; ok {
		return g, true
	}
	return "", false
}

// FirstGenre returns the first candidate that resolves, in order.
func FirstGenre(candidates []string) (Genre, bool) {
	for _, c := range candidates {
		if g, ok := ToGenre(c); ok {
			return g, true
		}
	}
	return "", false
}

// foldGenre builds a fresh Caser per call; Casers are not goroutine safe.
func foldGenre(text string) string {
	return cases.Fold().String(strings.TrimSpace(text))
}
