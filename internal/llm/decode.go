package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MustCompileSchema compiles a JSON schema from source, panicking on error.
// Intended for package-level schema constants.
func MustCompileSchema(src string) *jsonschema.Schema {
	schema, err := jsonschema.CompileString("schema.json", src)
	if err != nil {
		panic(fmt.Sprintf("llm: compiling schema: %v", err))
	}
	return schema
}

// DecodeJSON extracts the first well-formed JSON object or array from an LLM
// response, validates it against the given schema, and unmarshals it into v.
// Completions frequently wrap the payload in a fenced code block or surround
// it with prose; both are tolerated. A nil schema skips validation.
func DecodeJSON(content string, schema *jsonschema.Schema, v any) error {
	payload, err := ExtractJSON(content)
	if err != nil {
		return err
	}

	if schema != nil {
		var doc any
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return fmt.Errorf("parsing response JSON: %w", err)
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("response does not match schema: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("unmarshalling response JSON: %w", err)
	}
	return nil
}

// ExtractJSON returns the first well-formed JSON object or array found in
// the content, stripping markdown fences and surrounding prose.
func ExtractJSON(content string) (string, error) {
	rest := content
	offset := 0
	for {
		i := strings.IndexAny(rest, "{[")
		if i < 0 {
			return "", fmt.Errorf("no JSON found in response")
		}
		start := offset + i
		if candidate, ok := balancedFrom(content, start); ok {
			return candidate, nil
		}
		offset = start + 1
		rest = content[offset:]
	}
}

// balancedFrom scans a brace/bracket-balanced span starting at start and
// reports whether it is valid JSON.
func balancedFrom(content string, start int) (string, bool) {
	open := content[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// string contents are opaque
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				candidate := content[start : i+1]
				return candidate, json.Valid([]byte(candidate))
			}
		}
	}
	return "", false
}
