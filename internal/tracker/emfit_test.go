package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/sleepsift/sleepsift-cli/internal/config"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func newTestEmfit(cfg *config.Global, baseURL string) *Emfit {
	e := NewEmfit(cfg, nil)
	e.baseURL = baseURL
	return e
}

func TestEmfitAuthenticateWithToken(t *testing.T) {
	e := newTestEmfit(&config.Global{EmfitToken: "abc", HTTPTimeoutSec: 5}, "http://unused.invalid")
	if err := e.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate with token: %v", err)
	}
}

func TestEmfitAuthenticateLogin(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			http.NotFound(w, r)
			return
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if creds["username"] != "alice" || creds["password"] != "s3cret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer srv.Close()

	e := newTestEmfit(&config.Global{EmfitUsername: "alice", EmfitPassword: "s3cret", HTTPTimeoutSec: 5}, srv.URL)
	if err := e.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if e.token != "tok-1" {
		t.Fatalf("token = %q, want tok-1", e.token)
	}
}

func TestEmfitAuthenticateNoCredentials(t *testing.T) {
	e := newTestEmfit(&config.Global{HTTPTimeoutSec: 5}, "http://unused.invalid")
	err := e.Authenticate(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
}

func TestEmfitDeviceDiscovery(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/get" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"device_settings":[
			{"device_id":1234,"device_name":"Bedroom"},
			{"device_id":"5678","device_name":""}
		]}`)
	}))
	defer srv.Close()

	e := newTestEmfit(&config.Global{EmfitToken: "tok", HTTPTimeoutSec: 5}, srv.URL)
	devices, err := e.Devices(context.Background(), true)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %+v, want 2", devices)
	}
	if devices[0].ID != "1234" || devices[0].Name != "Bedroom" {
		t.Fatalf("devices[0] = %+v", devices[0])
	}
	if devices[1].ID != "5678" || devices[1].Name != "5678" {
		t.Fatalf("devices[1] = %+v", devices[1])
	}
}

func TestEmfitDeviceFallbackToConfig(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &config.Global{EmfitToken: "tok", EmfitDeviceIDs: "111, 222", HTTPTimeoutSec: 5}
	e := newTestEmfit(cfg, srv.URL)
	devices, err := e.Devices(context.Background(), true)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "111" || devices[1].ID != "222" {
		t.Fatalf("devices = %+v", devices)
	}
}

func TestEmfitDeviceNoneConfigured(t *testing.T) {
	e := newTestEmfit(&config.Global{EmfitToken: "tok", HTTPTimeoutSec: 5}, "http://unused.invalid")
	_, err := e.Devices(context.Background(), false)
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestEmfitFetchDays(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trends/dev1" {
			http.NotFound(w, r)
			return
		}
		from := r.URL.Query().Get("from")
		fmt.Fprintf(w, `{"data":[{
			"date":%q,
			"meas_hr_avg":61.5,
			"meas_rr_avg":14.2,
			"sleep_duration":27000,
			"sleep_score":88,
			"tossnturn_count":12
		}]}`, from)
	}))
	defer srv.Close()

	e := newTestEmfit(&config.Global{EmfitToken: "tok", HTTPTimeoutSec: 5, APIRateLimit: 100}, srv.URL)
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	days, rep, err := e.FetchDays(context.Background(), "dev1", start, start.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("FetchDays: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("days = %d, want 3", len(days))
	}
	if rep.CacheMisses != 3 {
		t.Fatalf("report = %+v", rep)
	}
	d := days[0]
	if d.HeartRateAvg == nil || *d.HeartRateAvg != 61.5 {
		t.Fatalf("heart rate = %v", d.HeartRateAvg)
	}
	if d.SleepDurationHours == nil || *d.SleepDurationHours != 7.5 {
		t.Fatalf("duration hours = %v, want 7.5", d.SleepDurationHours)
	}
	if d.DateString() != "2025-04-01" {
		t.Fatalf("date = %s", d.DateString())
	}
}

func TestEmfitFetchDaysEmptyWindow(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	e := newTestEmfit(&config.Global{EmfitToken: "tok", HTTPTimeoutSec: 5, APIRateLimit: 100}, srv.URL)
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := e.FetchDays(context.Background(), "dev1", start, start.AddDate(0, 0, 1))
	var ide *sleep.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
}
