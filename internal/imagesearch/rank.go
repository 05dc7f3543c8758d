package imagesearch

import (
	"sort"
	"strings"
)

// Candidate is one search hit.
type Candidate struct {
	URL       string
	Title     string
	Thumbnail string
	Context   string
	Width     int
	Height    int
	Source    string
	Score     int
}

var goodKeywords = []struct {
	word   string
	points int
}{
	{"bottle", 15},
	{"perfume", 10},
	{"fragrance", 10},
	{"parfum", 10},
	{"eau de", 8},
	{"official", 15},
	{"product", 12},
	{"front", 20},
	{"white background", 25},
	{"studio", 15},
}

var badKeywords = []string{
	"review", "unboxing", "comparison", "fake", "vs",
	"vintage", "empty", "box", "set", "collection",
	"miniature", "sample", "tester",
}

var trustedSources = []string{
	"fragrantica", "sephora", "nordstrom", "bloomingdales",
	"macy", "ulta", "douglas", "boots", "notino",
}

// Score rates how likely a hit is a front-facing product shot of the
// requested perfume. Matching is case-insensitive substring matching.
func Score(c Candidate, brand, name string) int {
	title := strings.ToLower(c.Title)
	snippet := strings.ToLower(c.Context)
	source := strings.ToLower(c.Source)
	brand = strings.ToLower(brand)
	name = strings.ToLower(name)

	score := 0
	if strings.Contains(title, brand) {
		score += 30
	}
	if strings.Contains(title, name) {
		score += 30
	}
	if strings.Contains(snippet, brand) {
		score += 10
	}
	if strings.Contains(snippet, name) {
		score += 10
	}

	for _, kw := range goodKeywords {
		if strings.Contains(title, kw.word) || strings.Contains(snippet, kw.word) {
			score += kw.points
		}
	}
	for _, kw := range badKeywords {
		if strings.Contains(title, kw) {
			score -= 15
		}
	}

	w, h := c.Width, c.Height
	switch {
	case w > 800 && h > 800:
		score += 25
	case w > 500 && h > 500:
		score += 15
	case w > 300 && h > 300:
		score += 5
	}

	if w > 0 && h > 0 {
		ratio := float64(w) / float64(h)
		switch {
		case ratio >= 0.8 && ratio <= 1.2:
			score += 20
		case ratio >= 0.6 && ratio < 0.8:
			score += 25
		case ratio > 1.2 && ratio <= 1.5:
			score += 10
		}
	}

	for _, trusted := range trustedSources {
		if strings.Contains(source, trusted) {
			score += 20
			break
		}
	}
	if compact := strings.ReplaceAll(brand, " ", ""); compact != "" && strings.Contains(source, compact) {
		score += 30
	}
	return score
}

// Rank scores candidates and orders them best first. Ties keep search order.
func Rank(candidates []Candidate, brand, name string) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = Score(out[i], brand, name)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
