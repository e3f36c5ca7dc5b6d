// Package config holds the gateway's CLI-equivalent configuration: the
// parambus component name, uplink service name, transport mode, and log
// level, validated and defaulted in the same Validate/DefaultConfig shape
// used throughout the rest of this codebase's configuration structs.
package config

import (
	"fmt"
	"time"

	"github.com/c360/webpa-gateway/errors"
)

// Mode selects the uplink transport.
type Mode string

const (
	// ModeReal drives the uplink over NATS.
	ModeReal Mode = "real"
	// ModeMock drives the uplink over line-delimited JSON on stdin/stdout.
	ModeMock Mode = "mock"
	// ModeWS drives the uplink over a WebSocket server, for driving the
	// gateway from a browser-based debug console instead of a pipe.
	ModeWS Mode = "ws"
)

// Config is the complete set of options the gateway process needs at
// startup.
type Config struct {
	// Component is the parambus component name the adapter opens against
	// (e.g. "parodus2rbus.client").
	Component string `json:"component"`

	// ServiceName is the name the uplink session registers under, and the
	// default source field on outbound notification frames.
	ServiceName string `json:"service_name"`

	// EventsEndpoint is the uplink destination notifications are sent to
	// when an event frame carries no destination of its own.
	EventsEndpoint string `json:"events_endpoint"`

	// Mode selects the uplink transport: "real" (NATS), "mock"
	// (line-delimited JSON stdio), or "ws" (WebSocket server).
	Mode Mode `json:"mode"`

	// LogLevel is 0 (error) .. 3 (debug), mapped onto slog's levels.
	LogLevel int `json:"log_level"`

	// NATSURL is the broker URL used for both the parambus adapter and the
	// uplink transport when Mode is "real".
	NATSURL string `json:"nats_url,omitempty"`

	// ReceiveTimeout bounds each uplink Transport.Receive poll.
	ReceiveTimeout time.Duration `json:"receive_timeout,omitempty"`

	// WSAddr and WSPath configure the uplink's WebSocket listener when
	// Mode is "ws".
	WSAddr string `json:"ws_addr,omitempty"`
	WSPath string `json:"ws_path,omitempty"`

	// Cache holds the parameter cache's sizing and TTL options.
	Cache CacheConfig `json:"cache"`

	// Auth holds the authorization hook's rule set.
	Auth AuthConfig `json:"auth"`
}

// CacheConfig mirrors cache.Config's fields for configuration-file
// round-tripping; gwservice translates it into a cache.Config at startup.
type CacheConfig struct {
	MaxEntries      int           `json:"max_entries,omitempty"`
	DefaultTTL      time.Duration `json:"default_ttl,omitempty"`
	CleanupInterval time.Duration `json:"cleanup_interval,omitempty"`
}

// AuthRule mirrors auth.Rule for configuration-file round-tripping.
type AuthRule struct {
	Pattern     string `json:"pattern"`
	Permissions int    `json:"permissions"`
	MinRole     int    `json:"min_role"`
	RequireAuth bool   `json:"require_auth"`
}

// AuthConfig mirrors auth.Policy's rule list.
type AuthConfig struct {
	Rules []AuthRule `json:"rules,omitempty"`
}

// DefaultConfig returns the gateway's out-of-the-box configuration.
func DefaultConfig() Config {
	return Config{
		Component:      "parodus2rbus.client",
		ServiceName:    "config",
		EventsEndpoint: "webpa.notify",
		Mode:           ModeMock,
		LogLevel:       1,
		NATSURL:        "nats://127.0.0.1:4222",
		ReceiveTimeout: 500 * time.Millisecond,
		WSAddr:         "127.0.0.1:8088",
		WSPath:         "/uplink",
		Cache: CacheConfig{
			MaxEntries:      10000,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
		},
	}
}

// Validate checks c for consistency, filling in zero-valued fields from
// DefaultConfig and returning the resulting Config alongside any
// unrecoverable error.
func (c Config) Validate() (Config, error) {
	d := DefaultConfig()

	if c.Component == "" {
		c.Component = d.Component
	}
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.EventsEndpoint == "" {
		c.EventsEndpoint = d.EventsEndpoint
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.Mode != ModeReal && c.Mode != ModeMock && c.Mode != ModeWS {
		return c, errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("mode must be %q, %q, or %q, got %q", ModeReal, ModeMock, ModeWS, c.Mode))
	}

	if c.LogLevel < 0 || c.LogLevel > 3 {
		return c, errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("log_level must be between 0 and 3, got %d", c.LogLevel))
	}

	if c.Mode == ModeReal && c.NATSURL == "" {
		c.NATSURL = d.NATSURL
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = d.ReceiveTimeout
	}
	if c.Mode == ModeWS {
		if c.WSAddr == "" {
			c.WSAddr = d.WSAddr
		}
		if c.WSPath == "" {
			c.WSPath = d.WSPath
		}
	}

	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = d.Cache.DefaultTTL
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = d.Cache.CleanupInterval
	}

	return c, nil
}
