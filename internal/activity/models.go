// Package activity manages live-activity charging sessions: an in-memory registry
// of registered activities, a per-session polling scheduler, and the refresh
// routine that keeps devices updated while a charge is in progress.
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/chargewatch/chargewatch/internal/vehicle"
	"github.com/chargewatch/chargewatch/internal/vehicle/porsche"
)

// Registry errors.
var (
	ErrMissingIdentifier = errors.New("registration has no identifier")
	ErrMissingPushToken  = errors.New("registration has no push token")
)

// DataSource selects where vehicle state comes from.
type DataSource string

const (
	// SourcePorsche polls the Porsche connected-vehicle API.
	SourcePorsche DataSource = "porsche"

	// SourceSimulated returns a fixed charging readout, for integration testing
	// without a live backend.
	SourceSimulated DataSource = "simulated"

	// SourceTesla has no live status feed; sessions tick as no-ops until the
	// client dismisses them.
	SourceTesla DataSource = "tesla"
)

// ProtocolVersion selects the notification payload shape.
type ProtocolVersion string

const (
	ProtocolV1 ProtocolVersion = "v1"
	ProtocolV2 ProtocolVersion = "v2"
)

// AuthToken carries the caller-supplied upstream credentials.
type AuthToken struct {
	AccessToken string `json:"accessToken"`
}

// LocaleEnvironment carries the country/language routing codes for the vehicle API.
type LocaleEnvironment struct {
	CountryCode string `json:"countryCode"`
	Identifier  string `json:"identifier"`
}

// Registration is the immutable payload a client submits to start a live activity.
type Registration struct {
	Identifier        string            `json:"identifier"`
	PushToken         string            `json:"pushToken"`
	VIN               string            `json:"vin"`
	DataSource        DataSource        `json:"dataSource"`
	AuthToken         AuthToken         `json:"authToken"`
	LocaleEnvironment LocaleEnvironment `json:"localeEnvironment"`
	Version           ProtocolVersion   `json:"version"`
}

// Validate checks the fields the registry cannot work without.
func (r *Registration) Validate() error {
	if r.Identifier == "" {
		return ErrMissingIdentifier
	}
	if r.PushToken == "" {
		return ErrMissingPushToken
	}
	return nil
}

// TokenSuffix returns the last 4 characters of the push token for logging.
// Full tokens never go to logs.
func (r *Registration) TokenSuffix() string {
	if len(r.PushToken) < 4 {
		return r.PushToken
	}
	return r.PushToken[len(r.PushToken)-4:]
}

// Termination is the payload a client submits to dismiss a live activity.
type Termination struct {
	Identifier string `json:"identifier"`
}

// Session is a registered live activity. The registry owns the identifier→session
// mapping and the scheduler handle; LastUpdateAt, LastReadout, and Capabilities
// are written only by the refresh routine, which runs at most once at a time for
// a given session.
type Session struct {
	Registration Registration

	// scheduler drives the recurring refresh. The registry is the sole owner
	// and cancels it before removing the session.
	scheduler *Scheduler

	// LastUpdateAt is when the last notification was dispatched; zero until then.
	LastUpdateAt time.Time

	// LastReadout is the last readout sent, for dedup; nil until the first dispatch.
	LastReadout *vehicle.Readout

	// Capabilities is the memoized capability document; nil until first fetched.
	Capabilities *porsche.Capabilities
}

// NewSession creates a session with a detached scheduler at the default
// interval. The registry swaps in its own scheduler before a session goes live;
// callers that drive Refresh directly can use the session as-is.
func NewSession(registration Registration) *Session {
	return &Session{
		Registration: registration,
		scheduler:    NewScheduler(SlowChargeInterval, func(context.Context) {}),
	}
}

// Scheduler exposes the session's scheduler, for interval adaptation in the
// refresh routine.
func (s *Session) Scheduler() *Scheduler {
	return s.scheduler
}
