// Package porsche provides a client for the Porsche connected-vehicle API and the
// normalization of its documents into vehicle readouts.
package porsche

import "errors"

// Provider errors.
var (
	// ErrNoData indicates the API answered without a payload. Treated as transient:
	// callers keep the session alive and retry on the next tick.
	ErrNoData = errors.New("no data from porsche api")

	// ErrUnexpectedStatus indicates a non-success HTTP response. Treated as a hard
	// provider failure.
	ErrUnexpectedStatus = errors.New("unexpected status from porsche api")
)

// EngineType classifies the drivetrain as reported by the capabilities endpoint.
type EngineType string

const (
	EngineBEV        EngineType = "BEV"
	EnginePHEV       EngineType = "PHEV"
	EngineCombustion EngineType = "COMBUSTION"
)

// Capabilities is the per-vehicle capability document. It is fetched once per
// live-activity session and cached; the car model feeds into the status URL.
type Capabilities struct {
	EngineType EngineType `json:"engineType"`
	CarModel   string     `json:"carModel"`
}

// ChargeRate is the charge rate block of the battery status.
type ChargeRate struct {
	ValueInKmPerHour float64 `json:"valueInKmPerHour"`
}

// BatteryChargeStatus is the battery block of the e-mobility document.
type BatteryChargeStatus struct {
	StateOfChargeInPercentage float64    `json:"stateOfChargeInPercentage"`
	ChargingState             string     `json:"chargingState"`
	PlugState                 string     `json:"plugState"`
	ChargingPower             float64    `json:"chargingPower"`
	ChargeRate                ChargeRate `json:"chargeRate"`
}

// Emobility is the vehicle status document returned by the e-mobility endpoint.
type Emobility struct {
	BatteryChargeStatus *BatteryChargeStatus `json:"batteryChargeStatus"`

	// FuelLevel is the tank fill in percent; present for PHEV and combustion cars.
	FuelLevel *float64 `json:"fuelLevel"`
}

// Charging/plug state values used by the API.
const (
	chargingStateCharging = "CHARGING"
	plugStateConnected    = "CONNECTED"
)

// AuthContext carries the caller-supplied credentials and locale routing headers
// forwarded on every API call.
type AuthContext struct {
	AccessToken string
	CountryCode string
	LocaleCode  string
}
