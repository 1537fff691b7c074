package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sleepsift/sleepsift-cli/internal/cache"
	"github.com/sleepsift/sleepsift-cli/internal/config"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
)

const eightDefaultBaseURL = "https://client-api.8slp.net/v1"

func init() {
	Register("eight", func(cfg *config.Global, c *cache.Cache) Tracker {
		return NewEight(cfg, c)
	})
}

// Eight integrates the Eight Sleep pod API via email/password sessions.
type Eight struct {
	cfg        *config.Global
	cache      *cache.Cache
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	token      string
	userID     string
}

// NewEight builds the Eight Sleep integration from configuration.
func NewEight(cfg *config.Global, c *cache.Cache) *Eight {
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := cfg.APIRateLimit
	if limit <= 0 {
		limit = 4
	}
	return &Eight{
		cfg:        cfg,
		cache:      c,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    eightDefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
	}
}

func (e *Eight) Name() string { return "eight" }

func (e *Eight) NotificationTitle() string { return "Eight Sleep Anomaly Alert" }

// Authenticate logs in with email/password and keeps the session token.
func (e *Eight) Authenticate(ctx context.Context) error {
	if e.cfg.EightEmail == "" || e.cfg.EightPassword == "" {
		return &APIError{Tracker: "eight", Msg: "eight_email and eight_password must be set"}
	}
	body, err := json.Marshal(map[string]string{
		"email":    e.cfg.EightEmail,
		"password": e.cfg.EightPassword,
	})
	if err != nil {
		return &APIError{Tracker: "eight", Msg: "marshal login", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return &APIError{Tracker: "eight", Msg: "build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Session struct {
			Token  string `json:"token"`
			UserID string `json:"userId"`
		} `json:"session"`
	}
	if err := e.do(req, &out); err != nil {
		return &APIError{Tracker: "eight", Msg: "login", Err: err}
	}
	if out.Session.Token == "" {
		return &APIError{Tracker: "eight", Msg: "authentication failed: no session token in response"}
	}
	e.token = out.Session.Token
	e.userID = out.Session.UserID
	return nil
}

// Devices returns the account's user as the single device; Eight exposes
// trend data per user, not per pod side.
func (e *Eight) Devices(ctx context.Context, autoDiscover bool) ([]Device, error) {
	if e.cfg.EightDeviceID != "" {
		id := e.cfg.EightDeviceID
		return []Device{{ID: id, Name: fmt.Sprintf("Eight Sleep (%s)", id)}}, nil
	}
	if autoDiscover && e.userID != "" {
		return []Device{{ID: e.userID, Name: fmt.Sprintf("Eight Sleep (%s)", e.userID)}}, nil
	}
	return nil, &config.ValidationError{
		Field:  "eight_device_id",
		Reason: "no device found: set eight_device_id or authenticate first",
	}
}

type eightTrendDay struct {
	Day           string   `json:"day"`
	SleepQuality  *float64 `json:"sleepQualityScore"`
	AverageHR     *float64 `json:"averageHeartRate"`
	AverageRR     *float64 `json:"averageRespiratoryRate"`
	SleepDuration *float64 `json:"sleepDuration"`
	TossAndTurns  *float64 `json:"tnt"`
}

// FetchDays pulls one trend row per date from the user's trends endpoint.
func (e *Eight) FetchDays(ctx context.Context, deviceID string, start, end time.Time) ([]sleep.Day, *FetchReport, error) {
	fetch := func(ctx context.Context, date string) ([]byte, error) {
		path := fmt.Sprintf("/users/%s/trends?tz=UTC&from=%s&to=%s", deviceID, date, date)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Session-Token", e.token)
		var raw json.RawMessage
		if err := e.do(req, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	parse := func(date string, raw []byte) (*sleep.Day, error) {
		var resp struct {
			Days []eightTrendDay `json:"days"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		if len(resp.Days) == 0 {
			return nil, nil
		}
		row := resp.Days[0]
		t, err := time.Parse(sleep.DateLayout, row.Day)
		if err != nil {
			t, err = time.Parse(sleep.DateLayout, date)
			if err != nil {
				return nil, err
			}
		}
		day := &sleep.Day{
			Date:             t,
			HeartRateAvg:     row.AverageHR,
			RespRateAvg:      row.AverageRR,
			SleepScore:       row.SleepQuality,
			TossAndTurnCount: row.TossAndTurns,
		}
		// Eight reports duration in seconds.
		if row.SleepDuration != nil {
			day.SleepDurationHours = sleep.Float(*row.SleepDuration / 3600)
		}
		return day, nil
	}
	return fetchWindow(ctx, e.cache, e.limiter, deviceID, start, end, fetch, parse)
}

func (e *Eight) do(req *http.Request, out any) error {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
