package device

import (
	"regexp"
	"time"
)

// Status represents the liveness state of a device.
type Status string

const (
	// StatusInactive means the device has not been seen recently (or ever).
	StatusInactive Status = "inactive"

	// StatusActive means the device passed a broker auth or ACL check
	// within the sweep threshold.
	StatusActive Status = "active"
)

// ApprovalState is the registration outcome reported to a device.
type ApprovalState string

const (
	// ApprovalPending means the device is registered but awaiting admin approval.
	ApprovalPending ApprovalState = "pending"

	// ApprovalApproved means the device has been authorized and holds an API key.
	ApprovalApproved ApprovalState = "approved"
)

// deviceIDPattern defines the valid format for device IDs:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
// Notably it cannot contain '/', '+' or '#', so a device ID is always
// a single MQTT topic level.
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// ValidateDeviceID checks a device ID against the allowed format.
func ValidateDeviceID(id string) error {
	if !deviceIDPattern.MatchString(id) {
		return ErrInvalidDeviceID
	}
	return nil
}

// Device represents a registered IoT endpoint.
type Device struct {
	ID          string     `json:"device_id"`
	MAC         string     `json:"mac"`
	APIKey      string     `json:"-"` // never serialised
	Description string     `json:"description,omitempty"`
	Authorized  bool       `json:"authorized"`
	Status      Status     `json:"status"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ApprovalState reports the device's position in the approval lifecycle.
func (d *Device) ApprovalState() ApprovalState {
	if d.Authorized {
		return ApprovalApproved
	}
	return ApprovalPending
}

// Stats summarises the device fleet for the admin dashboard.
type Stats struct {
	Total      int `json:"total"`
	Authorized int `json:"authorized"`
	Pending    int `json:"pending"`
	Active     int `json:"active"`
	Inactive   int `json:"inactive"`
}

// Credentials is the connection bundle issued to an approved device.
type Credentials struct {
	DeviceID string `json:"device_id"`
	JWT      string `json:"jwt"`
	MQTTHost string `json:"mqtt_host"`
	MQTTPort int    `json:"mqtt_port"`
	Topic    string `json:"topic"`
}
