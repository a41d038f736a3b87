// IoThink device simulator
//
// Simulates a Pico-class sensor node end to end against a running core:
// it registers, waits for an admin to approve it, fetches credentials,
// connects to the MQTT broker with the issued JWT, and publishes telemetry
// readings to its own topic until interrupted. The token is renewed before
// expiry using the device's own bearer token.
//
// Useful for exercising the full approval and auth-hook flow without
// flashing real hardware:
//
//	devicesim -api http://localhost:3000 -device greenhouse-01 -mac AA:BB:CC:DD:EE:01
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/euklyde/iothink-core/internal/infrastructure/config"
	"github.com/euklyde/iothink-core/internal/infrastructure/logging"
	"github.com/euklyde/iothink-core/internal/infrastructure/mqtt"
)

const (
	// pollInterval is how often the simulator re-checks for approval.
	pollInterval = 5 * time.Second

	// renewInterval is how often the device token is refreshed. Kept well
	// under the default 60-minute token lifetime.
	renewInterval = 45 * time.Minute

	// httpTimeout bounds every API call.
	httpTimeout = 10 * time.Second

	// publishQoS is QoS 1: at-least-once, matching real sensor firmware.
	publishQoS = 1
)

type simConfig struct {
	apiURL   string
	deviceID string
	mac      string
	interval time.Duration
}

// credentials mirrors the POST /devices/credentials response body.
type credentials struct {
	Authorized bool   `json:"authorized"`
	DeviceID   string `json:"device_id"`
	JWT        string `json:"jwt"`
	MQTTHost   string `json:"mqtt_host"`
	MQTTPort   int    `json:"mqtt_port"`
	Topic      string `json:"topic"`
}

func main() {
	cfg := simConfig{}
	flag.StringVar(&cfg.apiURL, "api", "http://localhost:3000", "core API base URL")
	flag.StringVar(&cfg.deviceID, "device", "sim-device-01", "device ID to register as")
	flag.StringVar(&cfg.mac, "mac", "AA:BB:CC:DD:EE:01", "MAC address to register with")
	flag.DurationVar(&cfg.interval, "interval", 10*time.Second, "telemetry publish interval")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg simConfig) error {
	log := logging.New(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, "dev").
		With("device_id", cfg.deviceID)

	sim := &simulator{
		cfg:    cfg,
		http:   &http.Client{Timeout: httpTimeout},
		logger: log,
	}

	if err := sim.register(ctx); err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	creds, err := sim.waitForApproval(ctx)
	if err != nil {
		return fmt.Errorf("waiting for approval: %w", err)
	}
	log.Info("credentials issued", "broker", fmt.Sprintf("%s:%d", creds.MQTTHost, creds.MQTTPort), "topic", creds.Topic)

	return sim.publishLoop(ctx, creds)
}

type simulator struct {
	cfg    simConfig
	http   *http.Client
	logger *logging.Logger
}

// register announces the device to the core. 202 means a fresh pending
// registration, 200 means the core already knows this device.
func (s *simulator) register(ctx context.Context) error {
	body := map[string]string{"device_id": s.cfg.deviceID, "mac": s.cfg.mac, "description": "simulated sensor node"}

	status, resp, err := s.postJSON(ctx, "/devices/register", body)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}

	s.logger.Info("registered", "approval_state", resp["status"])
	return nil
}

// waitForApproval polls the credentials endpoint until an admin approves
// the device. 403 means still pending; anything else unexpected is fatal.
func (s *simulator) waitForApproval(ctx context.Context) (*credentials, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		creds, ok, err := s.fetchCredentials(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return creds, nil
		}

		s.logger.Info("awaiting approval")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *simulator) fetchCredentials(ctx context.Context) (*credentials, bool, error) {
	body := map[string]string{"device_id": s.cfg.deviceID, "mac": s.cfg.mac}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.apiURL+"/devices/credentials", bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body

	switch resp.StatusCode {
	case http.StatusOK:
		var creds credentials
		if decodeErr := json.NewDecoder(resp.Body).Decode(&creds); decodeErr != nil {
			return nil, false, fmt.Errorf("decoding credentials: %w", decodeErr)
		}
		return &creds, true, nil
	case http.StatusForbidden:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("credentials request failed with status %d", resp.StatusCode)
	}
}

// publishLoop connects to the broker and publishes telemetry until the
// context is cancelled. The token is renewed periodically; a renewed token
// requires a reconnect since brokers authenticate at CONNECT time only.
func (s *simulator) publishLoop(ctx context.Context, creds *credentials) error {
	client, err := s.connect(creds)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // Best effort on shutdown

	ticker := time.NewTicker(s.cfg.interval)
	defer ticker.Stop()

	renew := time.NewTicker(renewInterval)
	defer renew.Stop()

	// Baseline readings drift over time like a real sensor.
	temperature := 21.0
	humidity := 55.0

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return nil

		case <-renew.C:
			jwt, renewErr := s.renewToken(ctx, creds.JWT)
			if renewErr != nil {
				s.logger.Error("token renewal failed", "error", renewErr)
				continue
			}
			creds.JWT = jwt
			client.Close() //nolint:errcheck // Reconnecting with fresh token
			client, err = s.connect(creds)
			if err != nil {
				return fmt.Errorf("reconnecting after renewal: %w", err)
			}
			s.logger.Info("token renewed")

		case <-ticker.C:
			temperature += rand.Float64() - 0.5 //nolint:gosec // Simulated sensor noise, not crypto
			humidity += rand.Float64() - 0.5    //nolint:gosec // Simulated sensor noise, not crypto

			reading, marshalErr := json.Marshal(map[string]any{
				"device_id":   s.cfg.deviceID,
				"temperature": fmt.Sprintf("%.2f", temperature),
				"humidity":    fmt.Sprintf("%.2f", humidity),
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
			})
			if marshalErr != nil {
				return fmt.Errorf("encoding reading: %w", marshalErr)
			}

			if pubErr := client.Publish(creds.Topic, reading, publishQoS, false); pubErr != nil {
				s.logger.Warn("publish failed", "error", pubErr)
				continue
			}
			s.logger.Info("published", "topic", creds.Topic, "temperature", fmt.Sprintf("%.2f", temperature))
		}
	}
}

func (s *simulator) connect(creds *credentials) (*mqtt.Client, error) {
	client, err := mqtt.Connect(mqtt.Options{
		Host:     creds.MQTTHost,
		Port:     creds.MQTTPort,
		ClientID: s.cfg.deviceID,
		Username: s.cfg.deviceID,
		Password: creds.JWT,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	return client, nil
}

// renewToken fetches a fresh device JWT using the current one as bearer.
func (s *simulator) renewToken(ctx context.Context, currentJWT string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/devices/%s/token", s.cfg.apiURL, s.cfg.deviceID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+currentJWT)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("renewal failed with status %d", resp.StatusCode)
	}

	var body struct {
		JWT string `json:"jwt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding renewal response: %w", err)
	}
	return body.JWT, nil
}

// postJSON posts a JSON body and decodes a JSON object response.
func (s *simulator) postJSON(ctx context.Context, path string, body any) (int, map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.apiURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, decoded, nil
}
