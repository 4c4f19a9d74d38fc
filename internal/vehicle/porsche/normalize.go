package porsche

import (
	"github.com/chargewatch/chargewatch/internal/vehicle"
)

// Normalize maps a capability document plus an e-mobility status document into a
// provider-agnostic readout. It is a pure mapping; unknown drivetrains and
// documents without a battery block degrade to the unknown variant rather than
// failing.
func Normalize(caps *Capabilities, status *Emobility) vehicle.Readout {
	switch caps.EngineType {
	case EngineBEV:
		if status.BatteryChargeStatus == nil {
			return vehicle.NewUnknown()
		}
		return vehicle.NewElectric(electricReadout(status.BatteryChargeStatus))

	case EnginePHEV:
		if status.BatteryChargeStatus == nil {
			return vehicle.NewUnknown()
		}
		return vehicle.NewHybrid(
			electricReadout(status.BatteryChargeStatus),
			conventionalReadout(status.FuelLevel),
		)

	case EngineCombustion:
		return vehicle.NewConventional(conventionalReadout(status.FuelLevel))

	default:
		return vehicle.NewUnknown()
	}
}

func electricReadout(battery *BatteryChargeStatus) vehicle.ElectricReadout {
	return vehicle.ElectricReadout{
		BatteryLevel:        battery.StateOfChargeInPercentage,
		State:               chargingState(battery),
		ChargeRateKmPerHour: battery.ChargeRate.ValueInKmPerHour,
		ChargeRateKW:        battery.ChargingPower,
	}
}

func chargingState(battery *BatteryChargeStatus) vehicle.ChargingState {
	switch {
	case battery.ChargingState == chargingStateCharging:
		return vehicle.StateCharging
	case battery.PlugState == plugStateConnected:
		return vehicle.StatePluggedIn
	default:
		return vehicle.StateIdle
	}
}

func conventionalReadout(fuelLevel *float64) vehicle.ConventionalReadout {
	if fuelLevel == nil {
		return vehicle.ConventionalReadout{}
	}
	return vehicle.ConventionalReadout{FuelLevel: *fuelLevel}
}
