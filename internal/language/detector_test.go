package language

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/db"
	"github.com/anirudhms/vani/internal/llm"
	"github.com/anirudhms/vani/internal/quota"
)

// stubProvider returns a canned completion, or an error, and counts calls.
type stubProvider struct {
	content string
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

const detectModel = "fast-model"

func setupDetector(t *testing.T, provider llm.Provider, ceiling int) *Detector {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	quotas := quota.NewTracker(database, map[string]int{detectModel: ceiling})
	return NewDetector(provider, quotas, detectModel, DefaultThresholds(), zap.NewNop())
}

func TestHeuristicScriptDominance(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		name     string
		text     string
		wantLang Lang
	}{
		{"pure kannada", "ನಮಸ್ಕಾರ ಹೇಗಿದ್ದೀರಾ", Kannada},
		{"pure telugu", "నమస్కారం ఎలా ఉన్నారు", Telugu},
		{"kannada with some ascii", "ನಮಸ್ಕಾರ ಹೇಗಿದ್ದೀರಾ ok", Kannada},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Heuristic(tc.text, th)
			if got.Language != tc.wantLang {
				t.Errorf("Language = %q, want %q", got.Language, tc.wantLang)
			}
			if got.Method != MethodHeuristic {
				t.Errorf("Method = %q, want heuristic", got.Method)
			}
			if got.Confidence <= th.Script {
				t.Errorf("Confidence = %v, want > %v", got.Confidence, th.Script)
			}
		})
	}
}

func TestHeuristicConfidenceEqualsScriptFraction(t *testing.T) {
	// 2 of 5 alphanumeric runes are Kannada: 40% > 30% threshold.
	text := "ನಮ a b c"
	got := Heuristic(text, DefaultThresholds())
	if got.Language != Kannada {
		t.Fatalf("Language = %q, want kn", got.Language)
	}
	if got.Confidence != 0.4 {
		t.Errorf("Confidence = %v, want 0.4", got.Confidence)
	}
}

func TestHeuristicASCIIDiscount(t *testing.T) {
	got := Heuristic("hello there", DefaultThresholds())
	if got.Language != English {
		t.Fatalf("Language = %q, want en", got.Language)
	}
	// 100% ASCII alphanumerics at a 0.8 discount.
	if got.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", got.Confidence)
	}
}

func TestHeuristicUnknownForMixedScripts(t *testing.T) {
	// Cyrillic is outside every known range: no script reaches its
	// threshold and ASCII stays below its own.
	got := Heuristic("привет мир hi", DefaultThresholds())
	if got.Language != Unknown {
		t.Errorf("Language = %q, want unknown", got.Language)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
}

func TestDetectEmptyInputNoCalls(t *testing.T) {
	provider := &stubProvider{content: `{"language":"telugu","confidence":1}`}
	detector := setupDetector(t, provider, 10)

	for _, text := range []string{"", "   ", "\n\t "} {
		got := detector.Detect(context.Background(), text)
		if got.Language != Default {
			t.Errorf("Detect(%q).Language = %q, want default", text, got.Language)
		}
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

func TestDetectHeuristicShortCircuitsModel(t *testing.T) {
	provider := &stubProvider{content: `{"language":"english","confidence":1}`}
	detector := setupDetector(t, provider, 10)

	got := detector.Detect(context.Background(), "ನಮಸ್ಕಾರ ಹೇಗಿದ್ದೀರಾ ಚೆನ್ನಾಗಿದ್ದೀರಾ")
	if got.Language != Kannada {
		t.Errorf("Language = %q, want kn", got.Language)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 (heuristic should short-circuit)", provider.calls)
	}
}

func TestDetectEscalatesAndUsesConfidentModel(t *testing.T) {
	// "swalpa" transliterations keep ASCII ratio high but these short mixed
	// inputs still escalate when the discount drops confidence below 0.7.
	provider := &stubProvider{content: `{"language":"kannada","confidence":0.95}`}
	detector := setupDetector(t, provider, 10)

	// 6 ascii of 8 alnum runes: ratio 0.75 ≥ 0.7, confidence 0.6 < 0.7.
	text := "swalpa ನಿಧಾ"
	got := detector.Detect(context.Background(), text)
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}
	if got.Language != Kannada || got.Method != MethodModel {
		t.Errorf("got %+v, want model-detected kn", got)
	}
}

func TestDetectLowModelConfidenceDefaults(t *testing.T) {
	provider := &stubProvider{content: `{"language":"kannada","confidence":0.4}`}
	detector := setupDetector(t, provider, 10)

	got := detector.Detect(context.Background(), "swalpa ನಿಧಾ")
	if got.Language != Default {
		t.Errorf("Language = %q, want default", got.Language)
	}
}

func TestDetectModelFailureFallsBackToHeuristic(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	detector := setupDetector(t, provider, 10)

	// Heuristic says English (known) at low confidence; model errors.
	got := detector.Detect(context.Background(), "swalpa ನಿಧಾ")
	if got.Language != English || got.Method != MethodHeuristic {
		t.Errorf("got %+v, want heuristic en fallback", got)
	}
}

func TestDetectMalformedModelOutputFallsBack(t *testing.T) {
	provider := &stubProvider{content: "I think it is Kannada, maybe?"}
	detector := setupDetector(t, provider, 10)

	got := detector.Detect(context.Background(), "swalpa ನಿಧಾ")
	if got.Language != English {
		t.Errorf("Language = %q, want en", got.Language)
	}
}

func TestDetectQuotaExhaustedNeverPropagates(t *testing.T) {
	provider := &stubProvider{content: `{"language":"telugu","confidence":1}`}
	detector := setupDetector(t, provider, 0) // pre-exhausted

	got := detector.Detect(context.Background(), "swalpa ನಿಧಾ")
	if got.Language == Unknown || got.Language == "" {
		t.Errorf("Language = %q, want a defined language", got.Language)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 when quota exhausted", provider.calls)
	}
}

func TestDetectClampsModelConfidence(t *testing.T) {
	provider := &stubProvider{content: `{"language":"telugu","confidence":3.5}`}
	detector := setupDetector(t, provider, 10)

	got := detector.Detect(context.Background(), "swalpa ನಿಧಾ")
	if got.Confidence > 1 {
		t.Errorf("Confidence = %v, want clamped to [0,1]", got.Confidence)
	}
	if got.Language != Telugu {
		t.Errorf("Language = %q, want te", got.Language)
	}
}

func TestDetectAlwaysReturnsClosedSet(t *testing.T) {
	detector := setupDetector(t, &stubProvider{err: errors.New("boom")}, 10)

	inputs := []string{
		"hello", "123", "!!!", "ನಮಸ್ಕಾರ", "నమస్కారం",
		"mixed ನಮ text", strings.Repeat("x", 10000), "日本語のテキスト",
	}
	valid := map[Lang]bool{English: true, Kannada: true, Telugu: true}

	for _, in := range inputs {
		got := detector.Detect(context.Background(), in)
		if !valid[got.Language] {
			t.Errorf("Detect(%.20q).Language = %q, not in closed set", in, got.Language)
		}
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Errorf("Detect(%.20q).Confidence = %v out of range", in, got.Confidence)
		}
	}
}

func TestResolutionStates(t *testing.T) {
	th := 0.7

	confident := Result{Language: Kannada, Confidence: 0.9, Method: MethodHeuristic}
	if d := decide(confident, th); d.outcome != resolved {
		t.Errorf("decide(confident) = %v, want resolved", d.outcome)
	}

	weak := Result{Language: English, Confidence: 0.5, Method: MethodHeuristic}
	if d := decide(weak, th); d.outcome != needsEscalation {
		t.Errorf("decide(weak) = %v, want needsEscalation", d.outcome)
	}

	model := Result{Language: Telugu, Confidence: 0.8, Method: MethodModel}
	if d := settle(weak, model, nil, th); d.outcome != resolved || d.result.Language != Telugu {
		t.Errorf("settle(confident model) = %+v, want resolved te", d)
	}

	hesitant := Result{Language: Telugu, Confidence: 0.3, Method: MethodModel}
	if d := settle(weak, hesitant, nil, th); d.outcome != degradedDefault || d.result.Language != Default {
		t.Errorf("settle(hesitant model) = %+v, want degraded default", d)
	}

	if d := settle(weak, Result{}, errors.New("down"), th); d.outcome != resolved || d.result.Language != English {
		t.Errorf("settle(model error, known heuristic) = %+v, want heuristic en", d)
	}

	unknown := Result{Language: Unknown, Confidence: 0, Method: MethodHeuristic}
	if d := settle(unknown, Result{}, errors.New("down"), th); d.outcome != degradedDefault || d.result.Language != Default {
		t.Errorf("settle(model error, unknown heuristic) = %+v, want degraded default", d)
	}
}
