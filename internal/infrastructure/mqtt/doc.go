// Package mqtt wraps paho.mqtt.golang with a minimal publisher client.
//
// iothink-core itself never talks MQTT; the broker reaches it the other
// way round, over the HTTP auth hooks. This package exists for device-side
// tooling (cmd/devicesim) that needs to connect to the broker with issued
// credentials and publish telemetry.
//
// The client authenticates with a device ID as username and an issued JWT
// (or legacy API key) as password, matching what the broker's auth plugin
// forwards to the hook endpoints.
package mqtt
