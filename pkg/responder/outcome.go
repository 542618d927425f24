package responder

import (
	"encoding/json"
	"strings"
)

const outcomeMarker = "```outcome"

// ExtractOutcome splits a raw model reply into the visible message and an
// optional outcome trailer. The model is prompted to finish a session by
// appending a fenced block:
//
//	```outcome
//	{"status":"resolved","summary":"...","next_actions":[...]}
//	```
//
// A malformed trailer is stripped but yields no outcome, so a confused
// model can never terminate a session with garbage.
func ExtractOutcome(raw string) (content string, outcome *Outcome) {
	idx := strings.LastIndex(raw, outcomeMarker)
	if idx < 0 {
		return strings.TrimSpace(raw), nil
	}

	content = strings.TrimSpace(raw[:idx])
	block := raw[idx+len(outcomeMarker):]
	if end := strings.Index(block, "```"); end >= 0 {
		block = block[:end]
	}

	var o Outcome
	if err := json.Unmarshal([]byte(strings.TrimSpace(block)), &o); err != nil {
		return content, nil
	}
	if o.Status == "" || o.Summary == "" {
		return content, nil
	}
	return content, &o
}
