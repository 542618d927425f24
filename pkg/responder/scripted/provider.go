// Package scripted provides a deterministic responder for development
// and tests: it replies with canned prompts and resolves the session
// after a fixed number of initiator turns.
package scripted

import (
	"context"
	"fmt"

	"ai-tutoring-be/pkg/responder"
)

type ScriptedProvider struct {
	// ResolveAfter is the number of initiator turns after which the
	// provider declares the session resolved.
	ResolveAfter int
}

var _ responder.Responder = &ScriptedProvider{}

func NewScriptedProvider(resolveAfter int) *ScriptedProvider {
	if resolveAfter < 1 {
		resolveAfter = 3
	}
	return &ScriptedProvider{ResolveAfter: resolveAfter}
}

func (p *ScriptedProvider) Respond(ctx context.Context, topic string, history []responder.Turn) (*responder.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	initiatorTurns := 0
	for _, turn := range history {
		if turn.Role == "initiator" {
			initiatorTurns++
		}
	}

	if initiatorTurns >= p.ResolveAfter {
		confidence := 0.9
		return &responder.Reply{
			Content: "Great work. You walked through the idea step by step and your last answer was right, so I think we can wrap up here.",
			Outcome: &responder.Outcome{
				Status:  "resolved",
				Summary: fmt.Sprintf("The student worked through %q over %d exchanges and reached a correct understanding of the concept.", topic, initiatorTurns),
				NextActions: []responder.NextAction{
					{Type: "practice", Label: "Try two or three practice problems on this topic"},
				},
				Confidence: &confidence,
			},
		}, nil
	}

	return &responder.Reply{
		Content: fmt.Sprintf("Let's take that step by step. Thinking about %q, what do you already know, and where does it stop making sense?", topic),
	}, nil
}
