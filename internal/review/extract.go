package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseReview decodes a model reply into a Review. Replies that wrap the
// object in prose or code fences are accepted: when the whole reply is not
// JSON, the first top-level object in it is used.
func ParseReview(reply string) (Review, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return Review{}, err
	}

	var out Review
	if err := json.Unmarshal(raw, &out); err != nil {
		return Review{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	for _, list := range []*[]string{&out.Strengths, &out.Weaknesses, &out.Patterns, &out.Recommendations} {
		if *list == nil {
			*list = []string{}
		}
	}
	return out, nil
}

// ExtractJSON returns the JSON object held in s. s itself is tried first,
// then the first balanced {...} span, then everything from the first '{' to
// the last '}'.
func ExtractJSON(s string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(s)
	if isObject(trimmed) {
		return json.RawMessage(trimmed), nil
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, ErrInvalidFormat
	}

	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&raw); err == nil && isObject(string(raw)) {
		return raw, nil
	}

	end := strings.LastIndexByte(s, '}')
	if end > start && isObject(s[start:end+1]) {
		return json.RawMessage(s[start : end+1]), nil
	}
	return nil, ErrInvalidFormat
}

func isObject(s string) bool {
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}
