package fuzzy

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/quentel/mp3org/internal/catalog"
)

// Matcher compares track pairs under one configuration.
type Matcher struct {
	cfg Config
}

// NewMatcher returns a matcher for cfg.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// similarity scores two already-normalized strings as a 0-100 percentage.
// Both empty counts as a perfect match, exactly one empty as none.
func (m *Matcher) similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if !m.cfg.WordOrderSensitive {
		sa, sb := sortWords(a), sortWords(b)
		if sa == sb {
			return 100
		}
		return max(jaroWinklerPct(a, b), jaroWinklerPct(sa, sb))
	}
	return jaroWinklerPct(a, b)
}

func jaroWinklerPct(a, b string) float64 {
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(sim) * 100
}

// TitleSimilarity scores two raw titles.
func (m *Matcher) TitleSimilarity(a, b string) float64 {
	return m.similarity(m.cfg.NormalizeTitle(a), m.cfg.NormalizeTitle(b))
}

// ArtistSimilarity scores two raw artist names.
func (m *Matcher) ArtistSimilarity(a, b string) float64 {
	return m.similarity(m.cfg.NormalizeArtist(a), m.cfg.NormalizeArtist(b))
}

// AlbumSimilarity scores two raw album names.
func (m *Matcher) AlbumSimilarity(a, b string) float64 {
	return m.similarity(m.cfg.NormalizeAlbum(a), m.cfg.NormalizeAlbum(b))
}

// LevenshteinDistance is the raw edit distance between a and b.
func LevenshteinDistance(a, b string) int {
	return edlib.LevenshteinDistance(a, b)
}

// LevenshteinSimilarity maps edit distance onto 0-100, 100 for equal
// strings.
func LevenshteinSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := edlib.LevenshteinDistance(a, b)
	return (1 - float64(d)/float64(longest)) * 100
}

// durationMatch applies the absolute-seconds and average-relative-percent
// tolerances. Unknown (zero) durations match anything.
func (m *Matcher) durationMatch(d1, d2 int) bool {
	if d1 <= 0 || d2 <= 0 {
		return true
	}
	diff := d1 - d2
	if diff < 0 {
		diff = -diff
	}
	if diff <= m.cfg.DurationToleranceSec {
		return true
	}
	avg := float64(d1+d2) / 2
	return 100*float64(diff)/avg <= float64(m.cfg.DurationTolerancePct)
}

// trackNumberGate applies the hard track-number gate. Returns true when
// the pair may proceed.
func (m *Matcher) trackNumberGate(a, b *catalog.Track) bool {
	if !m.cfg.TrackNumberMustMatch {
		return true
	}
	if a.TrackNumber == nil || b.TrackNumber == nil {
		return m.cfg.IgnoreMissingTrackNumber
	}
	return *a.TrackNumber == *b.TrackNumber
}

// Result is the full comparison outcome for one pair.
type Result struct {
	TitlePercent  float64
	ArtistPercent float64
	AlbumPercent  float64
	DurationMatch bool

	TitleMatch  bool
	ArtistMatch bool
	AlbumMatch  bool

	MatchingFields  int
	TrackGatePassed bool
	IsDuplicate     bool

	// SimilarityScore is the mean of the three field percentages when the
	// pair is a duplicate, 0 otherwise.
	SimilarityScore float64
}

// Compare runs the full duplicate decision for a pair of tracks.
func (m *Matcher) Compare(a, b *catalog.Track) Result {
	r := Result{
		TitlePercent:  m.TitleSimilarity(a.TitleOrFilename(), b.TitleOrFilename()),
		ArtistPercent: m.ArtistSimilarity(a.ArtistOrEmpty(), b.ArtistOrEmpty()),
		AlbumPercent:  m.AlbumSimilarity(a.AlbumOrEmpty(), b.AlbumOrEmpty()),
		DurationMatch: m.durationMatch(a.DurationSeconds, b.DurationSeconds),
	}
	r.TitleMatch = r.TitlePercent >= float64(m.cfg.TitleThreshold)
	r.ArtistMatch = r.ArtistPercent >= float64(m.cfg.ArtistThreshold)
	r.AlbumMatch = r.AlbumPercent >= float64(m.cfg.AlbumThreshold)

	for _, matched := range []bool{r.TitleMatch, r.ArtistMatch, r.AlbumMatch, r.DurationMatch} {
		if matched {
			r.MatchingFields++
		}
	}

	r.TrackGatePassed = m.trackNumberGate(a, b)
	r.IsDuplicate = r.TrackGatePassed && r.MatchingFields >= m.cfg.MinFieldsToMatch
	if r.IsDuplicate {
		r.SimilarityScore = (r.TitlePercent + r.ArtistPercent + r.AlbumPercent) / 3
	}
	return r
}

// IsDuplicate is Compare reduced to the decision bit.
func (m *Matcher) IsDuplicate(a, b *catalog.Track) bool {
	return m.Compare(a, b).IsDuplicate
}

// Breakdown renders a human-readable per-field trace for the compare
// endpoint.
func (r Result) Breakdown(a, b *catalog.Track, cfg Config) string {
	var sb strings.Builder
	mark := func(ok bool) string {
		if ok {
			return "match"
		}
		return "no match"
	}
	fmt.Fprintf(&sb, "title:    %.1f%% (threshold %d%%) -> %s\n",
		r.TitlePercent, cfg.TitleThreshold, mark(r.TitleMatch))
	fmt.Fprintf(&sb, "artist:   %.1f%% (threshold %d%%) -> %s\n",
		r.ArtistPercent, cfg.ArtistThreshold, mark(r.ArtistMatch))
	fmt.Fprintf(&sb, "album:    %.1f%% (threshold %d%%) -> %s\n",
		r.AlbumPercent, cfg.AlbumThreshold, mark(r.AlbumMatch))
	fmt.Fprintf(&sb, "duration: %ds vs %ds (tolerance %ds or %d%%) -> %s\n",
		a.DurationSeconds, b.DurationSeconds,
		cfg.DurationToleranceSec, cfg.DurationTolerancePct, mark(r.DurationMatch))
	if cfg.TrackNumberMustMatch {
		fmt.Fprintf(&sb, "track number gate -> %s\n", mark(r.TrackGatePassed))
	}
	fmt.Fprintf(&sb, "matching fields: %d of %d required\n", r.MatchingFields, cfg.MinFieldsToMatch)
	if r.IsDuplicate {
		fmt.Fprintf(&sb, "verdict: duplicate (score %.1f%%)", r.SimilarityScore)
	} else {
		sb.WriteString("verdict: not a duplicate")
	}
	return sb.String()
}
