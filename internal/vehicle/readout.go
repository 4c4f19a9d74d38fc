// Package vehicle provides the provider-agnostic vehicle readout model shared by the
// telemetry providers and the live-activity pipeline.
package vehicle

import "encoding/json"

// ChargingState describes what the high-voltage battery is currently doing.
type ChargingState string

const (
	StateCharging  ChargingState = "charging"
	StatePluggedIn ChargingState = "pluggedIn"
	StateIdle      ChargingState = "idle"
)

// Kind discriminates the readout variants.
type Kind string

const (
	KindElectric     Kind = "ev"
	KindHybrid       Kind = "phev"
	KindConventional Kind = "combustion"
	KindUnknown      Kind = "unknown"
)

// ElectricReadout is a snapshot of the traction battery.
type ElectricReadout struct {
	// BatteryLevel is the state of charge in percent (0-100).
	BatteryLevel        float64       `json:"batteryLevel"`
	State               ChargingState `json:"state"`
	ChargeRateKmPerHour float64       `json:"chargeRateInKmPerHour"`
	ChargeRateKW        float64       `json:"chargeRateInKW"`
}

// ConventionalReadout is a snapshot of the fuel tank.
type ConventionalReadout struct {
	// FuelLevel is the tank fill in percent (0-100).
	FuelLevel float64 `json:"fuelLevel"`
}

// Readout is a normalized snapshot of a vehicle's charge and fuel state.
// It is a tagged union over the drivetrain variants. All fields are comparable,
// so two readouts can be checked for equality with ==. The live-activity
// dedup check depends on this being structural equality over every field.
type Readout struct {
	Kind Kind

	// Electric is populated for KindElectric and KindHybrid.
	Electric ElectricReadout

	// Conventional is populated for KindHybrid and KindConventional.
	Conventional ConventionalReadout
}

// NewElectric builds an electric-only readout.
func NewElectric(e ElectricReadout) Readout {
	return Readout{Kind: KindElectric, Electric: e}
}

// NewHybrid builds a plug-in-hybrid readout.
func NewHybrid(e ElectricReadout, c ConventionalReadout) Readout {
	return Readout{Kind: KindHybrid, Electric: e, Conventional: c}
}

// NewConventional builds a combustion-only readout.
func NewConventional(c ConventionalReadout) Readout {
	return Readout{Kind: KindConventional, Conventional: c}
}

// NewUnknown builds a readout for a vehicle whose drivetrain could not be determined.
func NewUnknown() Readout {
	return Readout{Kind: KindUnknown}
}

// ElectricPart returns the electric readout if this variant carries one.
func (r Readout) ElectricPart() (ElectricReadout, bool) {
	switch r.Kind {
	case KindElectric, KindHybrid:
		return r.Electric, true
	default:
		return ElectricReadout{}, false
	}
}

// State returns the charging state, or StateIdle for variants without a battery.
func (r Readout) State() ChargingState {
	if e, ok := r.ElectricPart(); ok {
		return e.State
	}
	return StateIdle
}

// IsCharging reports whether the vehicle is actively charging.
func (r Readout) IsCharging() bool {
	return r.State() == StateCharging
}

// readoutJSON is the wire shape of a Readout. Only the parts that exist for the
// variant are emitted.
type readoutJSON struct {
	Kind         Kind                 `json:"type"`
	Electric     *ElectricReadout     `json:"ev,omitempty"`
	Conventional *ConventionalReadout `json:"combustion,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Readout) MarshalJSON() ([]byte, error) {
	out := readoutJSON{Kind: r.Kind}
	switch r.Kind {
	case KindElectric:
		out.Electric = &r.Electric
	case KindHybrid:
		out.Electric = &r.Electric
		out.Conventional = &r.Conventional
	case KindConventional:
		out.Conventional = &r.Conventional
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Readout) UnmarshalJSON(data []byte) error {
	var in readoutJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Readout{Kind: in.Kind}
	if in.Electric != nil {
		r.Electric = *in.Electric
	}
	if in.Conventional != nil {
		r.Conventional = *in.Conventional
	}
	return nil
}
