package activity

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/chargewatch/chargewatch/internal/provider/resilience"
	"github.com/chargewatch/chargewatch/internal/push"
	"github.com/chargewatch/chargewatch/internal/vehicle"
	"github.com/chargewatch/chargewatch/internal/vehicle/porsche"
)

const (
	// updateDebounce guards against overlapping or duplicate ticks: a tick
	// within this window of the last dispatched update is a no-op.
	updateDebounce = 50 * time.Second

	// fastChargeThresholdKW is the charge rate above which the session polls
	// at the fast interval.
	fastChargeThresholdKW = 100.0

	// dismissalDelay is how far in the future the device may remove the
	// activity on its own.
	dismissalDelay = 5 * time.Minute
)

// ErrSessionComplete signals that the vehicle is no longer charging and the
// session has served its purpose. The registry terminates the session on this
// error without treating it as a failure.
var ErrSessionComplete = errors.New("charging complete")

// VehicleSource fetches capability and status documents for a vehicle.
// *porsche.Client is the production implementation.
type VehicleSource interface {
	FetchCapabilities(ctx context.Context, vin string, auth porsche.AuthContext) (*porsche.Capabilities, error)
	FetchStatus(ctx context.Context, vin string, caps *porsche.Capabilities, auth porsche.AuthContext) (*porsche.Emobility, error)
}

// contentState is the current notification payload shape.
type contentState struct {
	Readout vehicle.Readout `json:"readout"`
}

// legacyContentState is the payload shape for sessions registered with ProtocolV1.
type legacyContentState struct {
	Readout vehicle.LegacyReadout `json:"readout"`
}

// Orchestrator runs one refresh for a session: fetch, normalize, dedup, dispatch,
// adapt the poll interval, and decide whether the session is complete.
type Orchestrator struct {
	source     VehicleSource
	dispatcher push.Dispatcher
	metrics    *resilience.ProviderMetrics
	logger     zerolog.Logger
}

// OrchestratorConfig holds the collaborators for an Orchestrator.
type OrchestratorConfig struct {
	Source     VehicleSource
	Dispatcher push.Dispatcher

	// Metrics records capability-cache hits and misses (optional).
	Metrics *resilience.ProviderMetrics

	Logger zerolog.Logger
}

// NewOrchestrator creates a new refresh orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		source:     cfg.Source,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Refresh executes one tick for the session. A nil return leaves the session
// registered; ErrSessionComplete asks the registry to terminate it because the
// charge is over; any other error is an unrecoverable tick failure and also
// terminates the session.
//
// Refresh is never invoked concurrently for the same session (the scheduler
// guarantees at most one tick in flight), so session mutations here need no lock.
func (o *Orchestrator) Refresh(ctx context.Context, session *Session) error {
	log := o.logger.With().
		Str("identifier", session.Registration.Identifier).
		Str("push_token_suffix", session.Registration.TokenSuffix()).
		Logger()

	if !session.LastUpdateAt.IsZero() && time.Since(session.LastUpdateAt) < updateDebounce {
		log.Debug().Msg("skipping update, last one was moments ago")
		return nil
	}

	readout, ok, err := o.fetchReadout(ctx, session)
	if err != nil {
		return err
	}
	if !ok {
		// Transient gap or a data source without a live feed.
		return nil
	}

	if session.LastReadout != nil && *session.LastReadout == readout {
		log.Debug().Msg("skipping push, readout unchanged")
		return nil
	}

	event := push.EventEnd
	if readout.IsCharging() {
		event = push.EventUpdate
	}

	log.Info().
		Str("event", string(event)).
		Str("readout_kind", string(readout.Kind)).
		Msg("sending live activity update")

	var payload interface{}
	if session.Registration.Version == ProtocolV1 {
		payload = legacyContentState{Readout: readout.Legacy()}
	} else {
		payload = contentState{Readout: readout}
	}

	err = o.dispatcher.SendLiveActivityUpdate(
		ctx,
		payload,
		event,
		session.Registration.PushToken,
		time.Time{}, // deliver now or not at all
		time.Now().Add(dismissalDelay),
	)
	if err != nil {
		return err
	}

	if electric, hasBattery := readout.ElectricPart(); hasBattery {
		if electric.ChargeRateKW > fastChargeThresholdKW {
			session.Scheduler().SetInterval(FastChargeInterval)
		} else {
			session.Scheduler().SetInterval(SlowChargeInterval)
		}
	}

	session.LastReadout = &readout
	session.LastUpdateAt = time.Now()

	if !readout.IsCharging() {
		return ErrSessionComplete
	}
	return nil
}

// fetchReadout resolves the session's data source into a readout. ok is false
// when the tick should end without action: a transient upstream gap, or a data
// source with no live feed.
func (o *Orchestrator) fetchReadout(ctx context.Context, session *Session) (vehicle.Readout, bool, error) {
	switch session.Registration.DataSource {
	case SourcePorsche:
		return o.fetchPorscheReadout(ctx, session)

	case SourceSimulated:
		return vehicle.NewElectric(vehicle.ElectricReadout{
			BatteryLevel:        25,
			State:               vehicle.StateCharging,
			ChargeRateKmPerHour: 10,
			ChargeRateKW:        4,
		}), true, nil

	default:
		return vehicle.Readout{}, false, nil
	}
}

func (o *Orchestrator) fetchPorscheReadout(ctx context.Context, session *Session) (vehicle.Readout, bool, error) {
	auth := porsche.AuthContext{
		AccessToken: session.Registration.AuthToken.AccessToken,
		CountryCode: session.Registration.LocaleEnvironment.CountryCode,
		LocaleCode:  session.Registration.LocaleEnvironment.Identifier,
	}

	caps := session.Capabilities
	if caps == nil {
		if o.metrics != nil {
			o.metrics.RecordCacheMiss(porsche.ProviderName, "capabilities")
		}
		fetched, err := o.source.FetchCapabilities(ctx, session.Registration.VIN, auth)
		if errors.Is(err, porsche.ErrNoData) {
			return vehicle.Readout{}, false, nil
		}
		if err != nil {
			return vehicle.Readout{}, false, err
		}
		caps = fetched
		session.Capabilities = fetched
	} else if o.metrics != nil {
		o.metrics.RecordCacheHit(porsche.ProviderName, "capabilities")
	}

	status, err := o.source.FetchStatus(ctx, session.Registration.VIN, caps, auth)
	if errors.Is(err, porsche.ErrNoData) {
		return vehicle.Readout{}, false, nil
	}
	if err != nil {
		return vehicle.Readout{}, false, err
	}

	return porsche.Normalize(caps, status), true, nil
}
