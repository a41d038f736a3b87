// Package bridge answers the MQTT broker's external-auth hook queries.
//
// The broker consults three hooks on every connect, publish and subscribe:
// connect-auth, superuser-check and ACL-check, each in a legacy
// (username/password) and a token (JWT bearer) variant. Both variants
// normalise to the same principal before the shared decision logic runs,
// so topic scoping and liveness behave identically regardless of how a
// device authenticated.
//
// Every answer is a single atomic grant or deny. Internal errors never
// escape: a failed lookup or store write is a deny, because the broker
// only understands yes and no.
package bridge
