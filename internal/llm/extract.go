package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/tripplanner/internal/models"
)

// Extraction tiers, reported to metrics.
const (
	TierFenced = "fenced"
	TierBraces = "braces"
	TierFailed = "failed"
)

var (
	fencedJSON    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	wrappingFence = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*\n?(.*?)\\s*```\\s*$")
)

// ExtractionError carries the raw model output when no usable JSON could be found.
type ExtractionError struct {
	Reason string
	Raw    string
}

func (e *ExtractionError) Error() string {
	return e.Reason
}

// StripCodeFences removes a markdown fence wrapping the whole reply.
func StripCodeFences(text string) string {
	if m := wrappingFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractCostBreakdown parses the four cost categories out of a free-form reply.
// A ```json fenced block wins when present and must decode on its own. Without one, only the
// first balanced {...} object is tried. The returned tier names the strategy that was used.
func ExtractCostBreakdown(text string) (*models.CostBreakdown, string, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		breakdown, err := decodeBreakdown(m[1])
		if err != nil {
			return nil, TierFailed, parseFailure(err, text)
		}
		return breakdown, TierFenced, nil
	}

	candidate, ok := firstObject(text)
	if !ok {
		return nil, TierFailed, &ExtractionError{
			Reason: "The model did not return a valid JSON response. Please try again.",
			Raw:    text,
		}
	}
	breakdown, err := decodeBreakdown(candidate)
	if err != nil {
		return nil, TierFailed, parseFailure(err, text)
	}
	return breakdown, TierBraces, nil
}

func parseFailure(err error, raw string) *ExtractionError {
	return &ExtractionError{
		Reason: fmt.Sprintf("Error parsing model response: %v", err),
		Raw:    raw,
	}
}

var costKeys = []string{"accommodation", "food", "transportation", "activities"}

func decodeBreakdown(raw string) (*models.CostBreakdown, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &fields); err != nil {
		return nil, err
	}
	values := make(map[string]float64, len(costKeys))
	for _, key := range costKeys {
		value, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("missing required cost property %q", key)
		}
		n, err := parseNumber(value)
		if err != nil {
			return nil, fmt.Errorf("cost property %q: %w", key, err)
		}
		values[key] = n
	}
	return &models.CostBreakdown{
		Accommodation:  values["accommodation"],
		Food:           values["food"],
		Transportation: values["transportation"],
		Activities:     values["activities"],
	}, nil
}

// parseNumber accepts a JSON number or a string holding one.
func parseNumber(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return n, nil
}

// firstObject returns the balanced {...} span starting at the first opening brace of text.
// Braces inside JSON strings are ignored.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := matchBrace(text, start)
	if end < 0 {
		return "", false
	}
	return text[start : end+1], true
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
