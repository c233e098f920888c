package session

import (
	"strings"

	"github.com/praxislabs/readiness/internal/domain"
)

// The multi-agent scorer upstream tends to over-score verbose but
// hedging answers. When a high score arrives together with clearly
// uncertain language, the score is pulled down into a plausible band.
// This is a linguistic backstop, not a scoring model: it only ever
// lowers a score, never raises one.
const (
	highScoreThreshold = 85.0
	markerThreshold    = 2
	correctionFactor   = 0.4
	correctedFloor     = 20.0
	correctedCeiling   = 45.0
)

// uncertaintyMarkers is the fixed vocabulary of hedging phrases.
// Matching is by substring over the lowercased concatenation of all
// answers; each marker counts once no matter how often it occurs.
var uncertaintyMarkers = []string{
	"not sure",
	"not really sure",
	"not certain",
	"don't know",
	"dont know",
	"i think",
	"i guess",
	"maybe",
	"probably",
	"possibly",
	"kind of",
	"kinda",
	"sort of",
	"basic",
	"no idea",
	"no clue",
	"unsure",
	"confused",
	"confusing",
	"unclear",
	"never heard",
}

// ValidateScore guards against an implausible upstream score. It
// returns the validated score and whether a correction was applied.
func ValidateScore(raw float64, responses []domain.QuestionResponse) (float64, bool) {
	if raw <= highScoreThreshold {
		return raw, false
	}
	if countDistinctMarkers(responses) < markerThreshold {
		return raw, false
	}

	corrected := raw * correctionFactor
	if corrected < correctedFloor {
		corrected = correctedFloor
	}
	if corrected > correctedCeiling {
		corrected = correctedCeiling
	}
	return corrected, true
}

// countDistinctMarkers counts how many distinct uncertainty markers
// appear anywhere in the combined answer text. Occurrence counts are
// deliberately ignored.
func countDistinctMarkers(responses []domain.QuestionResponse) int {
	var b strings.Builder
	for _, r := range responses {
		b.WriteString(r.Answer)
		b.WriteByte(' ')
	}
	text := strings.ToLower(b.String())

	count := 0
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(text, marker) {
			count++
		}
	}
	return count
}
