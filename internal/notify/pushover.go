// Package notify sends push alerts when an anomalous night is detected.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const pushoverDefaultEndpoint = "https://api.pushover.net/1/messages.json"

// ErrNotConfigured signals that pushover credentials are missing. Callers
// treat it as a skip, not a failure.
var ErrNotConfigured = errors.New("pushover token and user key not configured")

// Pushover delivers notifications through the Pushover message API.
type Pushover struct {
	token      string
	userKey    string
	endpoint   string
	httpClient *http.Client
}

// NewPushover builds a client from an application token and user key.
func NewPushover(token, userKey string) *Pushover {
	return &Pushover{
		token:      token,
		userKey:    userKey,
		endpoint:   pushoverDefaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether both credentials are present.
func (p *Pushover) Configured() bool {
	return p.token != "" && p.userKey != ""
}

// Send posts a titled message. Returns ErrNotConfigured when credentials
// are missing so callers can log and move on.
func (p *Pushover) Send(ctx context.Context, title, message string) error {
	if !p.Configured() {
		return ErrNotConfigured
	}
	form := url.Values{
		"token":   {p.token},
		"user":    {p.userKey},
		"title":   {title},
		"message": {message},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("pushover returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
