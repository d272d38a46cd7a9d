// Package extract turns raw vision-model output for a single shot into a
// structured ShotExtraction. Normalization never fails: malformed output
// yields an empty extraction with ParseOK=false and surfaces as low
// confidence during the consensus merge.
package extract

import (
	"encoding/json"
	"strings"
)

// Normalize strips incidental formatting from raw vision-model output and
// attempts structured parsing. It always returns a usable ShotExtraction.
func Normalize(raw string) ShotExtraction {
	content := strings.TrimSpace(raw)
	if content == "" {
		return Empty()
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		if err := validateEnvelopePayload([]byte(candidate)); err != nil {
			continue
		}

		var wire wireExtraction
		if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
			continue
		}
		return wire.toShotExtraction()
	}

	return Empty()
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, tolerating a missing closing fence.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		// Single-line fence like "```json{...}```".
		inner := strings.TrimPrefix(trimmed, "```")
		inner = strings.TrimPrefix(inner, "json")
		inner = strings.TrimPrefix(inner, "JSON")
		inner = strings.TrimSuffix(inner, "```")
		return strings.TrimSpace(inner)
	}

	// Drop first fence line (carries the optional language tag).
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate pulls the outermost JSON object out of surrounding
// commentary the model may have added despite instructions.
func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	start := strings.Index(trimmed, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(trimmed, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
