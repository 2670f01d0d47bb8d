package language

// outcome is the state of the fallback chain after a detection stage.
type outcome int

const (
	// resolved: a stage answered confidently; no further work.
	resolved outcome = iota
	// needsEscalation: the heuristic was inconclusive; ask the model.
	needsEscalation
	// degradedDefault: all stages failed; the default language stands in.
	degradedDefault
)

// decision pairs a fallback state with the result it settled on.
type decision struct {
	outcome outcome
	result  Result
}

// decide evaluates the heuristic stage against the confidence threshold.
func decide(heuristic Result, threshold float64) decision {
	if heuristic.Language != Unknown && heuristic.Confidence >= threshold {
		return decision{outcome: resolved, result: heuristic}
	}
	return decision{outcome: needsEscalation, result: heuristic}
}

// settle resolves the chain after the model stage. A confident model answer
// wins; a low-confidence answer degrades to the default language; a failed
// call falls back to the heuristic when it named a known language.
func settle(heuristic, model Result, modelErr error, threshold float64) decision {
	if modelErr == nil {
		if model.Language != Unknown && model.Confidence >= threshold {
			return decision{outcome: resolved, result: model}
		}
		return decision{
			outcome: degradedDefault,
			result:  Result{Language: Default, Confidence: model.Confidence, Method: MethodModel},
		}
	}

	if heuristic.Language != Unknown {
		return decision{outcome: resolved, result: heuristic}
	}
	return decision{
		outcome: degradedDefault,
		result:  Result{Language: Default, Confidence: 0, Method: MethodHeuristic},
	}
}
