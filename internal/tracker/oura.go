package tracker

import (
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

const ouraDefaultBaseURL = "https://api.ouraring.com/v2"

func init() {
	Register("oura", func(cfg *config.Global, c *cache.Cache) Tracker {
		return NewOura(cfg, c)
	})
}

// Oura integrates the Oura Ring v2 API via a personal access token.
type Oura struct {
	cfg        *config.Global
	cache      *cache.Cache
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewOura builds the Oura integration from configuration.
func NewOura(cfg *config.Global, c *cache.Cache) *Oura {
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := cfg.APIRateLimit
	if limit <= 0 {
		limit = 4
	}
	return &Oura{
		cfg:        cfg,
		cache:      c,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    ouraDefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
	}
}

func (o *Oura) Name() string { return "oura" }

func (o *Oura) NotificationTitle() string { return "Oura Anomaly Alert" }

// Authenticate verifies a personal access token is configured. Tokens are
// static for Oura; no login round-trip is needed.
func (o *Oura) Authenticate(ctx context.Context) error {
	if o.cfg.OuraAPIToken == "" {
		return &APIError{Tracker: "oura", Msg: "oura_api_token must be set"}
	}
	return nil
}

// Devices returns the single ring tied to the account. Oura accounts carry
// one ring; auto-discovery just derives a stable identifier from user info.
func (o *Oura) Devices(ctx context.Context, autoDiscover bool) ([]Device, error) {
	if o.cfg.OuraDeviceID != "" {
		id := o.cfg.OuraDeviceID
		return []Device{{ID: id, Name: fmt.Sprintf("Oura Ring (%s)", id)}}, nil
	}
	if autoDiscover {
		var info struct {
			ID string `json:"id"`
		}
		if err := o.get(ctx, "/usercollection/personal_info", &info); err == nil && info.ID != "" {
			return []Device{{ID: info.ID, Name: fmt.Sprintf("Oura Ring (%s)", info.ID)}}, nil
		}
	}
	return nil, &config.ValidationError{
		Field:  "oura_device_id",
		Reason: "no device found: set oura_device_id or check the API token",
	}
}

type ouraSleepSession struct {
	Day              string   `json:"day"`
	AverageHeartRate *float64 `json:"average_heart_rate"`
	AverageBreath    *float64 `json:"average_breath"`
	TotalSleep       *float64 `json:"total_sleep_duration"`
	Efficiency       *float64 `json:"efficiency"`
	RestlessPeriods  *float64 `json:"restless_periods"`
}

// FetchDays pulls one sleep session per date from the v2 sleep collection.
func (o *Oura) FetchDays(ctx context.Context, deviceID string, start, end time.Time) ([]sleep.Day, *FetchReport, error) {
	fetch := func(ctx context.Context, date string) ([]byte, error) {
		path := fmt.Sprintf("/usercollection/sleep?start_date=%s&end_date=%s", date, date)
		var raw json.RawMessage
		if err := o.get(ctx, path, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	parse := func(date string, raw []byte) (*sleep.Day, error) {
		var resp struct {
			Data []ouraSleepSession `json:"data"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, nil
		}
		// Prefer the longest session when a day holds several (naps).
		best := resp.Data[0]
		for _, s := range resp.Data[1:] {
			if s.TotalSleep != nil && (best.TotalSleep == nil || *s.TotalSleep > *best.TotalSleep) {
				best = s
			}
		}
		t, err := time.Parse(sleep.DateLayout, date)
		if err != nil {
			return nil, err
		}
		day := &sleep.Day{
			Date:             t,
			HeartRateAvg:     best.AverageHeartRate,
			RespRateAvg:      best.AverageBreath,
			SleepScore:       best.Efficiency,
			TossAndTurnCount: best.RestlessPeriods,
		}
		// Oura reports duration in seconds.
		if best.TotalSleep != nil {
			day.SleepDurationHours = sleep.Float(*best.TotalSleep / 3600)
		}
		return day, nil
	}
	return fetchWindow(ctx, o.cache, o.limiter, deviceID, start, end, fetch, parse)
}

func (o *Oura) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.OuraAPIToken)
	resp, err := o.httpClient.Do(req)
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
