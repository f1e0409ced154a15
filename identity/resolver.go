// Package identity maps free-form player names onto the identifiers used by
// the stats APIs.
package identity

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrUnresolvable is returned when no reference name scores at or above the
// resolver threshold.
var ErrUnresolvable = errors.New("name does not resolve to a known player")

// Match is the reference entry chosen for a query.
type Match struct {
	ID    string
	Name  string
	Score int
}

type entry struct {
	folded string
	sorted string
	name   string
	id     string
}

// Resolver is built once from a reference table and is read-only afterwards,
// so it is safe for concurrent lookups.
type Resolver struct {
	threshold int
	exact     map[string]entry
	byFold    map[string]entry
	entries   []entry
}

// NewResolver indexes ref (display name to identifier). threshold is a
// similarity score in [0, 100].
func NewResolver(ref map[string]string, threshold int) (*Resolver, error) {
	if threshold < 0 || threshold > 100 {
		return nil, errors.Newf("threshold %d outside [0, 100]", threshold)
	}
	names := make([]string, 0, len(ref))
	for name := range ref {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &Resolver{
		threshold: threshold,
		exact:     make(map[string]entry, len(ref)),
		byFold:    make(map[string]entry, len(ref)),
	}
	for _, name := range names {
		folded := fold(name)
		if folded == "" {
			continue
		}
		e := entry{folded: folded, sorted: tokenSort(folded), name: name, id: ref[name]}
		r.exact[name] = e
		if _, dup := r.byFold[folded]; dup {
			continue
		}
		r.byFold[folded] = e
		r.entries = append(r.entries, e)
	}
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].folded < r.entries[j].folded })
	return r, nil
}

// Len is the number of distinct reference names.
func (r *Resolver) Len() int { return len(r.entries) }

// Lookup returns the identifier for name.
func (r *Resolver) Lookup(name string) (string, error) {
	m, err := r.Match(name)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// Match resolves name against the reference table. Exact matches win outright;
// otherwise the highest scoring entry is returned if it clears the threshold.
// Ties go to the lexically smallest folded name.
func (r *Resolver) Match(name string) (Match, error) {
	if e, ok := r.exact[name]; ok {
		return Match{ID: e.id, Name: e.name, Score: 100}, nil
	}
	folded := fold(name)
	if folded == "" {
		return Match{}, errors.Wrapf(ErrUnresolvable, "%q", name)
	}
	if e, ok := r.byFold[folded]; ok {
		return Match{ID: e.id, Name: e.name, Score: 100}, nil
	}

	sorted := tokenSort(folded)
	best, bestScore := -1, -1
	for i, e := range r.entries {
		s := score(folded, sorted, e)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < r.threshold {
		return Match{}, errors.Wrapf(ErrUnresolvable, "%q (best score %d, threshold %d)", name, bestScore, r.threshold)
	}
	e := r.entries[best]
	return Match{ID: e.id, Name: e.name, Score: bestScore}, nil
}

// Score is the similarity of two names in [0, 100] after folding.
func Score(a, b string) int {
	fa, fb := fold(a), fold(b)
	return score(fa, tokenSort(fa), entry{folded: fb, sorted: tokenSort(fb)})
}

func score(folded, sorted string, e entry) int {
	s := similarity(folded, e.folded)
	if t := similarity(sorted, e.sorted); t > s {
		s = t
	}
	return int(math.Round(float64(s) * 100))
}

func similarity(a, b string) float32 {
	s, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return s
}

// fold lowercases, strips diacritics and punctuation, and collapses spaces.
// A transform chain carries state between calls, so each call builds its own.
func fold(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	out = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r) || r == '-':
			return ' '
		}
		return -1
	}, out)
	return strings.Join(strings.Fields(out), " ")
}

func tokenSort(folded string) string {
	f := strings.Fields(folded)
	sort.Strings(f)
	return strings.Join(f, " ")
}
