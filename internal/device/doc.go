// Package device implements the device identity lifecycle for IoThink Core.
//
// A device moves through four externally observable states:
//
//	Unregistered → Pending (registration)
//	Pending → Idle (admin approval, API key issued)
//	Idle → Active (successful broker auth or ACL check)
//	Active → Idle (inactivity sweep)
//
// Approval is one-way: no operation removes the authorized flag, and the
// API key is generated exactly once. Liveness (status + last_seen) is a
// side effect of broker hook traffic, reverted by the periodic sweep when
// a device goes quiet.
package device
