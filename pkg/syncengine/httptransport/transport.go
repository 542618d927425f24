// Package httptransport adapts the session REST API to the syncengine
// Transport port. HTTP statuses are translated back into the shared
// error kinds; failures where no response arrived become connection
// errors so the offline detector can count them.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-tutoring-be/internal/pkg/apperr"
	"ai-tutoring-be/pkg/syncengine"

	"github.com/google/uuid"
)

type Transport struct {
	BaseURL string
	Token   string // bearer token carrying the owner_id claim
	Client  *http.Client
}

var _ syncengine.Transport = &Transport{}

func New(baseURL, token string) *Transport {
	return &Transport{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (t *Transport) CreateSession(ctx context.Context, topic string) (*syncengine.Session, error) {
	body := map[string]string{"topic": topic}
	var sess syncengine.Session
	if err := t.do(ctx, http.MethodPost, "/api/session", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (t *Transport) AppendMessage(ctx context.Context, sessionID uuid.UUID, content string, expectedSequence int64) (*syncengine.AppendResult, error) {
	body := map[string]interface{}{
		"content":           content,
		"expected_sequence": expectedSequence,
	}
	var result syncengine.AppendResult
	path := fmt.Sprintf("/api/session/%s/message", sessionID)
	if err := t.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *Transport) GetSession(ctx context.Context, sessionID uuid.UUID) (*syncengine.Session, error) {
	var sess syncengine.Session
	path := fmt.Sprintf("/api/session/%s", sessionID)
	if err := t.do(ctx, http.MethodGet, path, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (t *Transport) ListSessions(ctx context.Context, limit, offset int) (*syncengine.SessionList, error) {
	var list syncengine.SessionList
	path := fmt.Sprintf("/api/session?limit=%d&offset=%d", limit, offset)
	if err := t.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (t *Transport) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.Token)

	resp, err := t.Client.Do(req)
	if err != nil {
		// The request never produced a response; this is the failure
		// shape the offline detector counts.
		return apperr.Transient("could not reach the server", fmt.Errorf("%w: %v", syncengine.ErrConnection, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Transient("could not read the response", fmt.Errorf("%w: %v", syncengine.ErrConnection, err))
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, payload)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return apperr.Transient("malformed server response", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperr.Transient("malformed server response", err)
		}
	}
	return nil
}

func statusError(status int, payload []byte) error {
	message := "request failed"
	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Message != "" {
		message = env.Message
	}

	switch status {
	case http.StatusBadRequest:
		return apperr.Validation(message)
	case http.StatusNotFound:
		return apperr.NotFound(message)
	case http.StatusConflict:
		return apperr.Conflict(message)
	case http.StatusUnprocessableEntity:
		return apperr.InvalidState(message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Forbidden(message)
	default:
		return apperr.Transient(message, fmt.Errorf("server returned status %d", status))
	}
}
