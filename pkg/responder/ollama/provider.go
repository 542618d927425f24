package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-tutoring-be/pkg/responder"
)

const systemPrompt = `You are a patient tutor helping a student work through a topic.
Keep replies short and concrete, and ask one guiding question at a time.
When the conversation has reached a natural end, append a fenced block to
your final reply, exactly in this form:

` + "```outcome" + `
{"status":"resolved","summary":"<at least 50 characters describing what was covered and concluded>","next_actions":[{"type":"practice","label":"..."}],"confidence":0.8}
` + "```" + `

Use status "resolved" when the student understood the topic,
"needs_more_help" when they should revisit it later, and
"refer_to_teacher" when the question needs a human teacher.
Do not emit the block while the conversation should continue.`

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements Responder
var _ responder.Responder = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Respond(ctx context.Context, topic string, history []responder.Turn) (*responder.Reply, error) {
	messages := make([]ollamaMessage, 0, len(history)+2)
	messages = append(messages, ollamaMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, ollamaMessage{
		Role:    "system",
		Content: fmt.Sprintf("The session topic is: %s", topic),
	})
	for _, turn := range history {
		role := "user"
		if turn.Role == "responder" {
			role = "assistant"
		}
		messages = append(messages, ollamaMessage{Role: role, Content: turn.Content})
	}

	reqPayload := ollamaChatRequest{
		Model:    o.ModelName,
		Messages: messages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: 0.7,
		},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	content, outcome := responder.ExtractOutcome(chatResp.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("ollama returned an empty reply")
	}

	return &responder.Reply{
		Content: content,
		Outcome: outcome,
	}, nil
}
