package vehicle

import "encoding/json"

// LegacyElectricReadout is the electric snapshot shape used by clients that
// registered with the legacy protocol version. It predates ChargingState and
// carries two derived booleans instead.
type LegacyElectricReadout struct {
	BatteryLevel        float64 `json:"batteryLevel"`
	IsCharging          bool    `json:"isCharging"`
	IsPluggedIn         bool    `json:"isPluggedIn"`
	ChargeRateKmPerHour float64 `json:"chargeRateInKmPerHour"`
	ChargeRateKW        float64 `json:"chargeRateInKW"`
}

// LegacyReadout is the legacy protocol's readout shape.
type LegacyReadout struct {
	Kind         Kind
	Electric     LegacyElectricReadout
	Conventional ConventionalReadout
}

// Legacy translates a readout into the legacy shape. The translation is total:
// every variant has a defined legacy representation, and the derived booleans
// follow directly from the charging state (charging ⇒ isCharging, pluggedIn ⇒
// isPluggedIn, idle ⇒ neither).
func (r Readout) Legacy() LegacyReadout {
	out := LegacyReadout{Kind: r.Kind}
	switch r.Kind {
	case KindElectric:
		out.Electric = legacyElectric(r.Electric)
	case KindHybrid:
		out.Electric = legacyElectric(r.Electric)
		out.Conventional = r.Conventional
	case KindConventional:
		out.Conventional = r.Conventional
	}
	return out
}

func legacyElectric(e ElectricReadout) LegacyElectricReadout {
	return LegacyElectricReadout{
		BatteryLevel:        e.BatteryLevel,
		IsCharging:          e.State == StateCharging,
		IsPluggedIn:         e.State == StatePluggedIn,
		ChargeRateKmPerHour: e.ChargeRateKmPerHour,
		ChargeRateKW:        e.ChargeRateKW,
	}
}

type legacyReadoutJSON struct {
	Kind         Kind                   `json:"type"`
	Electric     *LegacyElectricReadout `json:"ev,omitempty"`
	Conventional *ConventionalReadout   `json:"combustion,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r LegacyReadout) MarshalJSON() ([]byte, error) {
	out := legacyReadoutJSON{Kind: r.Kind}
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
