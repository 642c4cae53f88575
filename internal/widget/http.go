package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BobOttley/more-house-human/internal/answer"
	"github.com/BobOttley/more-house-human/internal/session"
)

// HTTPAdapter reaches the chat service over the poll transport.
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAdapter creates an adapter for the service at baseURL.
func NewHTTPAdapter(baseURL string) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type httpAskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type httpAskResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	URL       string `json:"url"`
	LinkLabel string `json:"link_label"`
}

type httpStatusRequest struct {
	SessionID string `json:"session_id"`
}

type httpStatusResponse struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

// Ask sends one question to POST /ask.
func (a *HTTPAdapter) Ask(ctx context.Context, sessionID, question string) (answer.Reply, string, error) {
	var resp httpAskResponse
	err := a.post(ctx, "/ask", httpAskRequest{Question: question, SessionID: sessionID}, &resp)
	if err != nil {
		return answer.Reply{}, sessionID, err
	}
	return answer.Reply{
		Text:      resp.Answer,
		Source:    session.Source(resp.Source),
		URL:       resp.URL,
		LinkLabel: resp.LinkLabel,
	}, resp.SessionID, nil
}

// Status polls POST /status for a queued human reply.
func (a *HTTPAdapter) Status(ctx context.Context, sessionID string) (string, session.Source, error) {
	var resp httpStatusResponse
	err := a.post(ctx, "/status", httpStatusRequest{SessionID: sessionID}, &resp)
	if err != nil {
		return "", session.SourceSystem, err
	}
	return resp.Answer, session.Source(resp.Source), nil
}

func (a *HTTPAdapter) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
