// Package tracker integrates pluggable sleep-tracker vendor APIs. Each
// vendor implements the Tracker capability set; the pipeline depends only on
// the day records they return, never on a concrete vendor.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sleepsift/sleepsift-cli/internal/cache"
	"github.com/sleepsift/sleepsift-cli/internal/config"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
)

// Device identifies one tracked sleeper/bed/ring.
type Device struct {
	ID   string
	Name string
}

// Tracker is the capability set every vendor integration provides.
type Tracker interface {
	// Name is the registry key, e.g. "emfit".
	Name() string
	// Authenticate establishes credentials; called once before any fetch.
	Authenticate(ctx context.Context) error
	// Devices lists devices to process, auto-discovering from the vendor
	// account when requested and falling back to configured IDs.
	Devices(ctx context.Context, autoDiscover bool) ([]Device, error)
	// FetchDays returns one day record per calendar date in [start, end],
	// skipping dates the vendor has no usable data for.
	FetchDays(ctx context.Context, deviceID string, start, end time.Time) ([]sleep.Day, *FetchReport, error)
	// NotificationTitle is the push-notification headline for this vendor.
	NotificationTitle() string
}

// APIError wraps a vendor API failure.
type APIError struct {
	Tracker string
	Msg     string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s api: %s: %v", e.Tracker, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s api: %s", e.Tracker, e.Msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// Factory builds a Tracker from configuration. The cache may be nil when
// caching is disabled.
type Factory func(cfg *config.Global, c *cache.Cache) Tracker

var registry = map[string]Factory{}

// Register adds a vendor integration under its name.
func Register(name string, f Factory) {
	registry[name] = f
}

// New builds the named tracker, or errors when no such vendor is registered.
func New(name string, cfg *config.Global, c *cache.Cache) (Tracker, error) {
	f, ok := registry[name]
	if !ok {
		return nil, &config.ValidationError{
			Field:  "tracker",
			Reason: fmt.Sprintf("unknown tracker %q (available: %v)", name, Names()),
		}
	}
	return f(cfg, c), nil
}

// Names lists registered vendors in stable order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
