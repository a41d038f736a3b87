package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrNotAuthorized is returned when credentials are requested for a device
	// that is not approved, or whose presented MAC does not match the stored
	// one. The two cases are deliberately indistinguishable to the caller.
	ErrNotAuthorized = errors.New("device: not authorized")

	// ErrInvalidDeviceID is returned when a device ID fails format validation.
	ErrInvalidDeviceID = errors.New("device: invalid device id")

	// ErrMissingFields is returned when a required registration field is absent.
	ErrMissingFields = errors.New("device: missing required fields")
)
