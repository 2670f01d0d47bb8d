package language

import "unicode"

// Unicode blocks for the supported scripts.
const (
	kannadaLo = 0x0C80
	kannadaHi = 0x0CFF
	teluguLo  = 0x0C00
	teluguHi  = 0x0C7F
)

// Heuristic classifies text by script code-point ranges alone. It counts
// non-space alphanumeric runes, and claims a script's language when that
// script's share exceeds th.Script. Mostly-ASCII text is claimed as the
// default language at a discounted confidence.
func Heuristic(text string, th Thresholds) Result {
	var kannada, telugu, ascii, total int

	for _, r := range text {
		if unicode.IsSpace(r) || (!unicode.IsLetter(r) && !unicode.IsDigit(r)) {
			continue
		}
		total++
		switch {
		case r >= kannadaLo && r <= kannadaHi:
			kannada++
		case r >= teluguLo && r <= teluguHi:
			telugu++
		case r < 128:
			ascii++
		}
	}

	if total == 0 {
		return Result{Language: Unknown, Confidence: 0, Method: MethodHeuristic}
	}

	if ratio := float64(kannada) / float64(total); ratio > th.Script {
		return Result{Language: Kannada, Confidence: ratio, Method: MethodHeuristic}
	}
	if ratio := float64(telugu) / float64(total); ratio > th.Script {
		return Result{Language: Telugu, Confidence: ratio, Method: MethodHeuristic}
	}

	if ratio := float64(ascii) / float64(total); ratio >= th.ASCII {
		return Result{Language: Default, Confidence: ratio * th.Discount, Method: MethodHeuristic}
	}

	return Result{Language: Unknown, Confidence: 0, Method: MethodHeuristic}
}
