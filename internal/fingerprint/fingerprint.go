// Package fingerprint compares tracks by their Chromaprint acoustic
// fingerprints and generates missing fingerprints with the external
// fpcalc tool.
package fingerprint

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const (
	// MinLength is the minimum number of fingerprint integers required
	// before a comparison is meaningful.
	MinLength = 10

	// DefaultThreshold is the pair similarity at or above which two
	// fingerprints count as the same recording.
	DefaultThreshold = 0.85
)

// Parse decodes a comma-separated Chromaprint raw fingerprint. Tokens are
// unsigned 32-bit values; they are stored in int32 slots, wrapping on
// overflow as chromaprint itself does.
func Parse(s string) ([]int32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("fingerprint: empty")
	}
	tokens := strings.Split(s, ",")
	out := make([]int32, 0, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: token %d %q: %w", i, tok, err)
		}
		if v < -1<<31 || v > 1<<32-1 {
			return nil, fmt.Errorf("fingerprint: token %d out of 32-bit range: %d", i, v)
		}
		out = append(out, int32(uint32(v)))
	}
	return out, nil
}

// Similarity is the mean bitwise closeness of the two fingerprints over
// their common prefix: (32 - popcount(xor)) / 32 per integer, in [0,1].
// Fingerprints shorter than MinLength are never similar.
func Similarity(a, b []int32) float64 {
	n := min(len(a), len(b))
	if n < MinLength {
		return 0
	}
	total := 0
	for i := range n {
		total += 32 - bits.OnesCount32(uint32(a[i])^uint32(b[i]))
	}
	return float64(total) / float64(32*n)
}

// CompareBreakdown renders a human-readable trace for a fingerprint pair.
func CompareBreakdown(a, b []int32, threshold float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fingerprint lengths: %d vs %d (compared %d)\n", len(a), len(b), min(len(a), len(b)))
	if min(len(a), len(b)) < MinLength {
		fmt.Fprintf(&sb, "too short to compare (minimum %d integers)", MinLength)
		return sb.String()
	}
	sim := Similarity(a, b)
	fmt.Fprintf(&sb, "bit similarity: %.2f%%\n", sim*100)
	if sim >= threshold {
		fmt.Fprintf(&sb, "verdict: duplicate (threshold %.0f%%)", threshold*100)
	} else {
		fmt.Fprintf(&sb, "verdict: not a duplicate (threshold %.0f%%)", threshold*100)
	}
	return sb.String()
}
