// Package push defines the contract for delivering live-activity updates to devices.
package push

import (
	"context"
	"errors"
	"time"
)

// Dispatch errors.
var (
	// ErrDeviceGone indicates the device token is no longer valid. Sessions for
	// dead tokens are terminated rather than retried.
	ErrDeviceGone = errors.New("device token no longer valid")
)

// Event is the live-activity notification event kind.
type Event string

const (
	// EventUpdate refreshes the on-device activity content.
	EventUpdate Event = "update"

	// EventEnd ends the on-device activity.
	EventEnd Event = "end"
)

// Dispatcher delivers a live-activity content payload to a device.
// Implementations target a specific push platform (APNS in production, mocks in
// tests).
type Dispatcher interface {
	// SendLiveActivityUpdate sends contentState to the device identified by
	// deviceToken. A zero expiration means the update is not stored for later
	// delivery; dismissalDeadline is when the device may remove the activity
	// on its own.
	SendLiveActivityUpdate(ctx context.Context, contentState interface{}, event Event, deviceToken string, expiration, dismissalDeadline time.Time) error
}
