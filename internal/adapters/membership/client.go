// Package membership talks to the external membership and message APIs.
package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

const maxBody = 1 << 16

type validateRequest struct {
	UserID domain.UserID `json:"user_id"`
	ChatID domain.RoomID `json:"chat_id"`
}

type validateResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message,omitempty"`
}

// Validator implements core.MembershipValidator over HTTP.
type Validator struct {
	URL    string
	Client *http.Client
}

func NewValidator(url string, timeout time.Duration) *Validator {
	return &Validator{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (v *Validator) Validate(ctx context.Context, user domain.UserID, room domain.RoomID) (bool, string, error) {
	resp, err := postJSON(ctx, v.Client, v.URL, validateRequest{UserID: user, ChatID: room})
	if err != nil {
		return false, "", fmt.Errorf("%w: %w", core.ErrValidatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, "", fmt.Errorf("%w: status %d", core.ErrValidatorUnavailable, resp.StatusCode)
	}
	var body validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil {
		return false, "", fmt.Errorf("%w: decode: %w", core.ErrValidatorUnavailable, err)
	}
	if body.Success == nil {
		return false, "", fmt.Errorf("%w: response without success field", core.ErrValidatorUnavailable)
	}
	return *body.Success, body.Message, nil
}

// Persister implements core.MessagePersister over HTTP.
type Persister struct {
	URL    string
	Client *http.Client
}

func NewPersister(url string, timeout time.Duration) *Persister {
	return &Persister{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (p *Persister) Save(ctx context.Context, msg domain.ChatMessage) error {
	resp, err := postJSON(ctx, p.Client, p.URL, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrPersistenceFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", core.ErrPersistenceFailed, resp.StatusCode)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, v any) (*http.Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}
