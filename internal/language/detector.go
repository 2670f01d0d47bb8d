package language

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/llm"
	"github.com/anirudhms/vani/internal/quota"
)

// classifySystemPrompt instructs the model to answer with JSON only.
const classifySystemPrompt = "You are a language detection expert. Respond only with JSON."

const classifyPromptTemplate = `Identify the primary language of this text. Respond with ONLY a JSON object in this exact format:

{
  "language": "english" | "kannada" | "telugu",
  "confidence": 0.0 to 1.0
}

Text to analyze: %q

Rules:
- If the text is primarily in English (even with some Indian language words), return "english"
- If the text is primarily in Kannada script, return "kannada"
- If the text is primarily in Telugu script, return "telugu"
- Confidence should be 1.0 if you're certain, lower if mixed or unclear
- Return ONLY the JSON, no other text`

var classifySchema = llm.MustCompileSchema(`{
	"type": "object",
	"required": ["language", "confidence"],
	"properties": {
		"language": {"type": "string"},
		"confidence": {"type": "number"}
	}
}`)

var labelToLang = map[string]Lang{
	"english": English,
	"kannada": Kannada,
	"telugu":  Telugu,
}

// Detector classifies input text, escalating from the script heuristic to a
// quota-gated LLM call when the heuristic is inconclusive. Detect never
// fails: every failure path degrades to a defined language.
type Detector struct {
	provider   llm.Provider
	quotas     *quota.Tracker
	model      string
	thresholds Thresholds
	logger     *zap.Logger
}

// NewDetector creates a Detector that escalates to the given model.
func NewDetector(provider llm.Provider, quotas *quota.Tracker, model string, th Thresholds, logger *zap.Logger) *Detector {
	return &Detector{
		provider:   provider,
		quotas:     quotas,
		model:      model,
		thresholds: th,
		logger:     logger,
	}
}

// Detect classifies text into one of the supported languages.
func (d *Detector) Detect(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Language: Default, Confidence: 1, Method: MethodHeuristic}
	}

	heuristic := Heuristic(text, d.thresholds)
	dec := decide(heuristic, d.thresholds.Confidence)
	if dec.outcome == resolved {
		return dec.result
	}

	model, err := d.classify(ctx, text)
	if err != nil {
		d.logger.Warn("language classification degraded",
			zap.Error(err),
			zap.String("heuristic_language", string(heuristic.Language)))
	}

	return settle(heuristic, model, err, d.thresholds.Confidence).result
}

// classify asks the LLM for a language label and confidence. The call is
// counted against the model's daily quota before it is made.
func (d *Detector) classify(ctx context.Context, text string) (Result, error) {
	if _, err := d.quotas.CheckAndIncrement(ctx, d.model); err != nil {
		return Result{}, err
	}

	resp, err := d.provider.Complete(ctx, llm.CompletionRequest{
		Model: d.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifySystemPrompt},
			{Role: llm.RoleUser, Content: classifyPrompt(text)},
		},
		MaxTokens:   100,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return Result{}, err
	}

	var out struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := llm.DecodeJSON(resp.Content, classifySchema, &out); err != nil {
		return Result{}, err
	}

	lang, ok := labelToLang[strings.ToLower(strings.TrimSpace(out.Language))]
	if !ok {
		lang = Unknown
	}

	return Result{
		Language:   lang,
		Confidence: clamp01(out.Confidence),
		Method:     MethodModel,
	}, nil
}

func classifyPrompt(text string) string {
	return fmt.Sprintf(classifyPromptTemplate, text)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
