// Package language classifies free text into a small closed language set,
// using a cheap script heuristic first and a quota-gated LLM second.
package language

// Lang identifies a supported language.
type Lang string

const (
	English Lang = "en"
	Kannada Lang = "kn"
	Telugu  Lang = "te"
	Unknown Lang = "unknown"
)

// Default is the language assumed when nothing better can be determined.
const Default = English

// Method records which detection stage produced a result.
type Method string

const (
	MethodHeuristic Method = "heuristic"
	MethodModel     Method = "model"
)

// Result is the outcome of one detection call. It is never persisted.
type Result struct {
	Language   Lang    `json:"language"`
	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
}

// Thresholds are the detection policy knobs.
type Thresholds struct {
	// Confidence is the minimum confidence at which a stage's answer is
	// accepted without escalation.
	Confidence float64
	// Script is the minimum fraction of characters in a non-Latin script
	// for the heuristic to claim that script's language.
	Script float64
	// ASCII is the minimum fraction of ASCII alphanumerics for the
	// heuristic to claim the default language.
	ASCII float64
	// Discount deflates the ASCII heuristic's confidence, since Latin text
	// could still be a transliteration of another language.
	Discount float64
}

// DefaultThresholds returns the standard detection policy.
func DefaultThresholds() Thresholds {
	return Thresholds{Confidence: 0.7, Script: 0.3, ASCII: 0.7, Discount: 0.8}
}
