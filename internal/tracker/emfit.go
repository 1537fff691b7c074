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

const emfitDefaultBaseURL = "https://qs-api.emfit.com/api/v1"

func init() {
	Register("emfit", func(cfg *config.Global, c *cache.Cache) Tracker {
		return NewEmfit(cfg, c)
	})
}

// Emfit integrates the Emfit QS bed sensor API.
type Emfit struct {
	cfg        *config.Global
	cache      *cache.Cache
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	token      string
}

// NewEmfit builds the Emfit integration from configuration.
func NewEmfit(cfg *config.Global, c *cache.Cache) *Emfit {
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := cfg.APIRateLimit
	if limit <= 0 {
		limit = 4
	}
	return &Emfit{
		cfg:        cfg,
		cache:      c,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    emfitDefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		token:      cfg.EmfitToken,
	}
}

func (e *Emfit) Name() string { return "emfit" }

func (e *Emfit) NotificationTitle() string { return "Emfit Anomaly Alert" }

// Authenticate uses a configured API token when present, otherwise logs in
// with username/password to obtain one.
func (e *Emfit) Authenticate(ctx context.Context) error {
	if e.token != "" {
		return nil
	}
	if e.cfg.EmfitUsername == "" || e.cfg.EmfitPassword == "" {
		return &APIError{Tracker: "emfit", Msg: "either emfit_token or emfit_username/emfit_password must be set"}
	}
	body, err := json.Marshal(map[string]string{
		"username": e.cfg.EmfitUsername,
		"password": e.cfg.EmfitPassword,
	})
	if err != nil {
		return &APIError{Tracker: "emfit", Msg: "marshal login", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return &APIError{Tracker: "emfit", Msg: "build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := e.do(req, &out); err != nil {
		return &APIError{Tracker: "emfit", Msg: "login", Err: err}
	}
	if out.Token == "" {
		return &APIError{Tracker: "emfit", Msg: "authentication failed: no token in response"}
	}
	e.token = out.Token
	return nil
}

// Devices auto-discovers devices from the account's user info, falling back
// to configured device IDs.
func (e *Emfit) Devices(ctx context.Context, autoDiscover bool) ([]Device, error) {
	if autoDiscover {
		devices, err := e.discover(ctx)
		if err == nil && len(devices) > 0 {
			return devices, nil
		}
	}
	if e.cfg.EmfitDeviceIDs != "" {
		var out []Device
		for _, id := range strings.Split(e.cfg.EmfitDeviceIDs, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				out = append(out, Device{ID: id, Name: id})
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	if e.cfg.EmfitDeviceID != "" {
		return []Device{{ID: e.cfg.EmfitDeviceID, Name: e.cfg.EmfitDeviceID}}, nil
	}
	return nil, &config.ValidationError{
		Field:  "emfit_device_id",
		Reason: "no device IDs found: auto-discovery failed and no manual configuration set (set emfit_device_id or emfit_device_ids)",
	}
}

func (e *Emfit) discover(ctx context.Context) ([]Device, error) {
	var user struct {
		DeviceSettings []struct {
			DeviceID   json.Number `json:"device_id"`
			DeviceName string      `json:"device_name"`
		} `json:"device_settings"`
	}
	if err := e.get(ctx, "/user/get", &user); err != nil {
		return nil, err
	}
	var out []Device
	for _, d := range user.DeviceSettings {
		id := d.DeviceID.String()
		if id == "" {
			continue
		}
		name := d.DeviceName
		if name == "" {
			name = id
		}
		out = append(out, Device{ID: id, Name: name})
	}
	return out, nil
}

type emfitTrendDay struct {
	Date           string   `json:"date"`
	MeasHRAvg      *float64 `json:"meas_hr_avg"`
	MeasRRAvg      *float64 `json:"meas_rr_avg"`
	SleepDuration  *float64 `json:"sleep_duration"`
	SleepScore     *float64 `json:"sleep_score"`
	TossnturnCount *float64 `json:"tossnturn_count"`
}

// FetchDays pulls one trends row per date, consulting the cache first.
func (e *Emfit) FetchDays(ctx context.Context, deviceID string, start, end time.Time) ([]sleep.Day, *FetchReport, error) {
	fetch := func(ctx context.Context, date string) ([]byte, error) {
		path := fmt.Sprintf("/trends/%s?from=%s&to=%s", deviceID, date, date)
		var raw json.RawMessage
		if err := e.get(ctx, path, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	parse := func(date string, raw []byte) (*sleep.Day, error) {
		var trends struct {
			Data []emfitTrendDay `json:"data"`
		}
		if err := json.Unmarshal(raw, &trends); err != nil {
			return nil, err
		}
		if len(trends.Data) == 0 {
			return nil, nil
		}
		row := trends.Data[0]
		t, err := time.Parse(sleep.DateLayout, row.Date)
		if err != nil {
			t, err = time.Parse(sleep.DateLayout, date)
			if err != nil {
				return nil, err
			}
		}
		day := &sleep.Day{
			Date:             t,
			HeartRateAvg:     row.MeasHRAvg,
			RespRateAvg:      row.MeasRRAvg,
			SleepScore:       row.SleepScore,
			TossAndTurnCount: row.TossnturnCount,
		}
		// Emfit reports duration in seconds.
		if row.SleepDuration != nil {
			day.SleepDurationHours = sleep.Float(*row.SleepDuration / 3600)
		}
		return day, nil
	}
	return fetchWindow(ctx, e.cache, e.limiter, deviceID, start, end, fetch, parse)
}

func (e *Emfit) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	return e.do(req, out)
}

func (e *Emfit) do(req *http.Request, out any) error {
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
