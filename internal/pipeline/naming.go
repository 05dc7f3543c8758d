package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TimestampLayout formats the per-run timestamp embedded in artifact names
// and used as the history key.
const TimestampLayout = "20060102_150405"

// Artifact name suffixes.
const (
	SuffixOriginal = "original"
	SuffixMain     = "main"
	SuffixNobg     = "nobg"
	SuffixStyled   = "styled"
	SuffixSeedance = "seedance"
)

const maxSafeNameRunes = 50

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

// SafeName builds the file name prefix for a product: punctuation dropped,
// spaces turned into underscores, at most 50 characters.
func SafeName(brand, name string) string {
	safe := sanitizePart(brand) + "_" + sanitizePart(name)
	if runes := []rune(safe); len(runes) > maxSafeNameRunes {
		safe = string(runes[:maxSafeNameRunes])
	}
	return safe
}

func sanitizePart(s string) string {
	s = norm.NFC.String(s)
	s = unsafeNameChars.ReplaceAllString(s, "")
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

// Timestamp renders t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ArtifactName returns "{safe}_{suffix}_{timestamp}.{ext}".
func ArtifactName(safe, suffix, timestamp, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", safe, suffix, timestamp, ext)
}

// NobgNameFor maps a styled artifact name onto its background-removed sibling.
func NobgNameFor(filename string) string {
	return strings.ReplaceAll(filename, "_"+SuffixStyled, "_"+SuffixNobg)
}
