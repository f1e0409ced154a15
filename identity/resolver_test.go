package identity

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reference = map[string]string{
	"Luka Dončić":             "1629029",
	"Giannis Antetokounmpo":   "203507",
	"Nikola Jokić":            "203999",
	"Jimmy Butler":            "202710",
	"Shai Gilgeous-Alexander": "1628983",
	"De'Aaron Fox":            "1628368",
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(reference, 80)
	require.NoError(t, err)
	return r
}

func TestLookup(t *testing.T) {
	r := newResolver(t)
	tests := []struct {
		query string
		want  string
	}{
		{"Luka Dončić", "1629029"},
		{"Luka Doncic", "1629029"},
		{"luka  doncic ", "1629029"},
		{"Giannis Antetokoumpo", "203507"},
		{"Jokic Nikola", "203999"},
		{"Shai Gilgeous Alexander", "1628983"},
		{"DeAaron Fox", "1628368"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := r.Lookup(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupUnresolvable(t *testing.T) {
	r := newResolver(t)
	for _, q := range []string{"", "Zzyzx Qwerty", "LeBron James", "!!!"} {
		_, err := r.Lookup(q)
		assert.True(t, errors.Is(err, ErrUnresolvable), q)
	}
}

func TestMatchReportsScore(t *testing.T) {
	r := newResolver(t)
	m, err := r.Match("Luka Doncic")
	require.NoError(t, err)
	assert.Equal(t, 100, m.Score)
	assert.Equal(t, "Luka Dončić", m.Name)

	m, err = r.Match("Giannis Antetokoumpo")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Score, 80)
	assert.Less(t, m.Score, 100)
}

func TestTiesAreDeterministic(t *testing.T) {
	r, err := NewResolver(map[string]string{"ac": "2", "ab": "1"}, 50)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		got, err := r.Lookup("aa")
		require.NoError(t, err)
		assert.Equal(t, "1", got)
	}
}

func TestThresholdBounds(t *testing.T) {
	_, err := NewResolver(reference, 101)
	assert.Error(t, err)
	_, err = NewResolver(reference, -1)
	assert.Error(t, err)

	strict, err := NewResolver(reference, 100)
	require.NoError(t, err)
	_, err = strict.Lookup("Giannis Antetokoumpo")
	assert.True(t, errors.Is(err, ErrUnresolvable))
	_, err = strict.Lookup("Luka Doncic")
	assert.NoError(t, err)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 100, Score("Nikola Jokić", "nikola jokic"))
	assert.Equal(t, 100, Score("Jokic Nikola", "Nikola Jokic"))
	assert.Less(t, Score("Jimmy Butler", "Kevin Durant"), 50)
}

func TestConcurrentLookups(t *testing.T) {
	r := newResolver(t)
	queries := []string{
		"Luka Dončić", "Luka Doncic", "Nikola Jokić", "Jokic Nikola",
		"Giannis Antetokoumpo", "Shai Gilgeous Alexander", "DeAaron Fox", "Jimmy Butler",
	}
	want := make(map[string]string, len(queries))
	for _, q := range queries {
		id, err := r.Lookup(q)
		require.NoError(t, err, q)
		want[q] = id
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				q := queries[(i+n)%len(queries)]
				got, err := r.Lookup(q)
				assert.NoError(t, err, q)
				assert.Equal(t, want[q], got, q)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(reference), r.Len())
}

func TestFoldConcurrent(t *testing.T) {
	names := []string{"Luka Dončić", "Nikola Jokić", "Dāvis Bertāns", "Bogdan Bogdanović", "Jonas Valančiūnas", "Dario Šarić"}
	want := make([]string, len(names))
	for i, n := range names {
		want[i] = fold(n)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				j := (i + n) % len(names)
				assert.Equal(t, want[j], fold(names[j]))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, "dario saric", want[5])
}
