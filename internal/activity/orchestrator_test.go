package activity_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargewatch/chargewatch/internal/activity"
	"github.com/chargewatch/chargewatch/internal/push"
	"github.com/chargewatch/chargewatch/internal/vehicle/porsche"
)

// mockSource is a scripted vehicle telemetry source.
type mockSource struct {
	mu sync.Mutex

	capabilities *porsche.Capabilities
	capsErr      error
	status       *porsche.Emobility
	statusErr    error

	capsCalls   int
	statusCalls int
}

func (m *mockSource) FetchCapabilities(_ context.Context, _ string, _ porsche.AuthContext) (*porsche.Capabilities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capsCalls++
	if m.capsErr != nil {
		return nil, m.capsErr
	}
	return m.capabilities, nil
}

func (m *mockSource) FetchStatus(_ context.Context, _ string, _ *porsche.Capabilities, _ porsche.AuthContext) (*porsche.Emobility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.status, nil
}

// dispatchedUpdate records one dispatcher invocation.
type dispatchedUpdate struct {
	payload     interface{}
	event       push.Event
	deviceToken string
}

// mockDispatcher records live-activity dispatches.
type mockDispatcher struct {
	mu      sync.Mutex
	updates []dispatchedUpdate
	err     error
}

func (m *mockDispatcher) SendLiveActivityUpdate(_ context.Context, contentState interface{}, event push.Event, deviceToken string, _, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.updates = append(m.updates, dispatchedUpdate{
		payload:     contentState,
		event:       event,
		deviceToken: deviceToken,
	})
	return nil
}

func (m *mockDispatcher) sent() []dispatchedUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dispatchedUpdate(nil), m.updates...)
}

func newTestOrchestrator(source activity.VehicleSource, dispatcher push.Dispatcher) *activity.Orchestrator {
	return activity.NewOrchestrator(activity.OrchestratorConfig{
		Source:     source,
		Dispatcher: dispatcher,
		Logger:     zerolog.Nop(),
	})
}

func simulatedRegistration(identifier string) activity.Registration {
	return activity.Registration{
		Identifier: identifier,
		PushToken:  "device-token-1",
		VIN:        "WP0TEST123",
		DataSource: activity.SourceSimulated,
		Version:    activity.ProtocolV2,
	}
}

// newTestSession builds an unregistered session for direct Refresh calls.
func newTestSession(registration activity.Registration) *activity.Session {
	return activity.NewSession(registration)
}

func chargingStatus(power float64) *porsche.Emobility {
	return &porsche.Emobility{
		BatteryChargeStatus: &porsche.BatteryChargeStatus{
			StateOfChargeInPercentage: 50,
			ChargingState:             "CHARGING",
			PlugState:                 "CONNECTED",
			ChargingPower:             power,
			ChargeRate:                porsche.ChargeRate{ValueInKmPerHour: 30},
		},
	}
}

func idleStatus() *porsche.Emobility {
	return &porsche.Emobility{
		BatteryChargeStatus: &porsche.BatteryChargeStatus{
			StateOfChargeInPercentage: 100,
			ChargingState:             "COMPLETED",
			PlugState:                 "CONNECTED",
		},
	}
}

func TestOrchestrator_SimulatedSourceDispatchesUpdate(t *testing.T) {
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(&mockSource{}, dispatcher)
	session := newTestSession(simulatedRegistration("act-1"))

	err := orch.Refresh(context.Background(), session)
	require.NoError(t, err)

	updates := dispatcher.sent()
	require.Len(t, updates, 1)
	assert.Equal(t, push.EventUpdate, updates[0].event)
	assert.Equal(t, "device-token-1", updates[0].deviceToken)

	require.NotNil(t, session.LastReadout)
	assert.Equal(t, 25.0, session.LastReadout.Electric.BatteryLevel)
	assert.Equal(t, 4.0, session.LastReadout.Electric.ChargeRateKW)
	assert.False(t, session.LastUpdateAt.IsZero())
}

func TestOrchestrator_DebounceSkipsRecentlyUpdatedSession(t *testing.T) {
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(&mockSource{}, dispatcher)
	session := newTestSession(simulatedRegistration("act-1"))
	session.LastUpdateAt = time.Now().Add(-10 * time.Second)

	err := orch.Refresh(context.Background(), session)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.sent(), "tick inside the debounce window must be a no-op")
}

func TestOrchestrator_DedupSkipsUnchangedReadout(t *testing.T) {
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(&mockSource{}, dispatcher)
	session := newTestSession(simulatedRegistration("act-1"))

	require.NoError(t, orch.Refresh(context.Background(), session))
	require.Len(t, dispatcher.sent(), 1)

	// Step past the debounce window; the simulated readout never changes, so
	// the second tick must not dispatch.
	session.LastUpdateAt = time.Now().Add(-time.Minute)
	require.NoError(t, orch.Refresh(context.Background(), session))
	assert.Len(t, dispatcher.sent(), 1)
}

func TestOrchestrator_UnsupportedSourceIsNoOp(t *testing.T) {
	source := &mockSource{}
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(source, dispatcher)

	registration := simulatedRegistration("act-1")
	registration.DataSource = activity.SourceTesla
	session := newTestSession(registration)

	err := orch.Refresh(context.Background(), session)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 0, source.capsCalls)
	assert.Nil(t, session.LastReadout)
}

func TestOrchestrator_CapabilitiesAreCachedPerSession(t *testing.T) {
	source := &mockSource{
		capabilities: &porsche.Capabilities{EngineType: porsche.EngineBEV, CarModel: "J1"},
		status:       chargingStatus(11),
	}
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(source, dispatcher)

	registration := simulatedRegistration("act-1")
	registration.DataSource = activity.SourcePorsche
	session := newTestSession(registration)

	require.NoError(t, orch.Refresh(context.Background(), session))
	require.NotNil(t, session.Capabilities)

	session.LastUpdateAt = time.Now().Add(-time.Minute)
	source.status = chargingStatus(12)
	require.NoError(t, orch.Refresh(context.Background(), session))

	assert.Equal(t, 1, source.capsCalls, "capabilities are fetched once and memoized")
	assert.Equal(t, 2, source.statusCalls)
}

func TestOrchestrator_TransientFetchFailureKeepsSession(t *testing.T) {
	source := &mockSource{capsErr: porsche.ErrNoData}
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(source, dispatcher)

	registration := simulatedRegistration("act-1")
	registration.DataSource = activity.SourcePorsche
	session := newTestSession(registration)

	err := orch.Refresh(context.Background(), session)
	require.NoError(t, err, "a data gap must not surface as a tick failure")
	assert.Empty(t, dispatcher.sent())
	assert.Nil(t, session.Capabilities)

	// Same policy for a status gap after capabilities succeeded.
	source.capsErr = nil
	source.capabilities = &porsche.Capabilities{EngineType: porsche.EngineBEV}
	source.statusErr = porsche.ErrNoData
	require.NoError(t, orch.Refresh(context.Background(), session))
	assert.Empty(t, dispatcher.sent())
}

func TestOrchestrator_HardFetchFailurePropagates(t *testing.T) {
	source := &mockSource{capsErr: porsche.ErrUnexpectedStatus}
	orch := newTestOrchestrator(source, &mockDispatcher{})

	registration := simulatedRegistration("act-1")
	registration.DataSource = activity.SourcePorsche
	session := newTestSession(registration)

	err := orch.Refresh(context.Background(), session)
	assert.ErrorIs(t, err, porsche.ErrUnexpectedStatus)
}

func TestOrchestrator_DispatchFailurePropagates(t *testing.T) {
	dispatcher := &mockDispatcher{err: push.ErrDeviceGone}
	orch := newTestOrchestrator(&mockSource{}, dispatcher)
	session := newTestSession(simulatedRegistration("act-1"))

	err := orch.Refresh(context.Background(), session)
	assert.ErrorIs(t, err, push.ErrDeviceGone)
	assert.Nil(t, session.LastReadout, "failed dispatch must not commit state")
}

func TestOrchestrator_ChargingCompleteEndsSession(t *testing.T) {
	source := &mockSource{
		capabilities: &porsche.Capabilities{EngineType: porsche.EngineBEV},
		status:       idleStatus(),
	}
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(source, dispatcher)

	registration := simulatedRegistration("act-1")
	registration.DataSource = activity.SourcePorsche
	session := newTestSession(registration)

	err := orch.Refresh(context.Background(), session)
	assert.ErrorIs(t, err, activity.ErrSessionComplete)

	// The end event is still delivered before the session goes away.
	updates := dispatcher.sent()
	require.Len(t, updates, 1)
	assert.Equal(t, push.EventEnd, updates[0].event)
}

func TestOrchestrator_AdaptsIntervalToChargeRate(t *testing.T) {
	source := &mockSource{
		capabilities: &porsche.Capabilities{EngineType: porsche.EngineBEV},
		status:       chargingStatus(150),
	}
	orch := newTestOrchestrator(source, &mockDispatcher{})

	registration := simulatedRegistration("act-1")
	registration.DataSource = activity.SourcePorsche
	session := newTestSession(registration)

	require.NoError(t, orch.Refresh(context.Background(), session))
	assert.Equal(t, activity.FastChargeInterval, session.Scheduler().Interval(),
		"150 kW is a fast charge")

	session.LastUpdateAt = time.Now().Add(-time.Minute)
	source.status = chargingStatus(4)
	require.NoError(t, orch.Refresh(context.Background(), session))
	assert.Equal(t, activity.SlowChargeInterval, session.Scheduler().Interval(),
		"4 kW drops back to the slow interval")
}

func TestOrchestrator_LegacyProtocolGetsTranslatedPayload(t *testing.T) {
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(&mockSource{}, dispatcher)

	registration := simulatedRegistration("act-1")
	registration.Version = activity.ProtocolV1
	session := newTestSession(registration)

	require.NoError(t, orch.Refresh(context.Background(), session))

	updates := dispatcher.sent()
	require.Len(t, updates, 1)

	data, err := json.Marshal(updates[0].payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"readout": {
			"type": "ev",
			"ev": {
				"batteryLevel": 25,
				"isCharging": true,
				"isPluggedIn": false,
				"chargeRateInKmPerHour": 10,
				"chargeRateInKW": 4
			}
		}
	}`, string(data))
}

func TestOrchestrator_CurrentProtocolGetsReadoutPayload(t *testing.T) {
	dispatcher := &mockDispatcher{}
	orch := newTestOrchestrator(&mockSource{}, dispatcher)
	session := newTestSession(simulatedRegistration("act-1"))

	require.NoError(t, orch.Refresh(context.Background(), session))

	updates := dispatcher.sent()
	require.Len(t, updates, 1)

	data, err := json.Marshal(updates[0].payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"readout": {
			"type": "ev",
			"ev": {
				"batteryLevel": 25,
				"state": "charging",
				"chargeRateInKmPerHour": 10,
				"chargeRateInKW": 4
			}
		}
	}`, string(data))
}
