package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/euklyde/iothink-core/internal/auth"
	"github.com/euklyde/iothink-core/internal/infrastructure/logging"
)

// ServiceConfig carries the injected settings the lifecycle service needs.
// The core never reads process environment directly.
type ServiceConfig struct {
	// JWTSecret signs device access tokens.
	JWTSecret string

	// AccessTokenTTL is the device token lifetime in minutes.
	AccessTokenTTL int

	// BrokerHost and BrokerPort are advertised to devices in the
	// credentials bundle. The core never connects to the broker itself.
	BrokerHost string
	BrokerPort int

	// TopicPrefix is the single topic level devices publish under,
	// e.g. "pico" → topic "pico/<device_id>".
	TopicPrefix string

	// SystemUsername is the reserved telemetry principal. It never has a
	// device record, but lists and stats exclude it defensively.
	SystemUsername string
}

// Service implements the device lifecycle: registration, approval,
// credential issuance, token renewal, and the inactivity sweep.
type Service struct {
	repo   Repository
	cfg    ServiceConfig
	logger *logging.Logger
}

// NewService creates a device lifecycle service.
func NewService(repo Repository, cfg ServiceConfig, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With("component", "device"),
	}
}

// Topic returns the single broker topic a device may use.
func (s *Service) Topic(deviceID string) string {
	return s.cfg.TopicPrefix + "/" + deviceID
}

// Register records a new device in the pending state, or reports the
// current approval state if the device already exists. Registration is
// idempotent: the same device_id never creates two records.
// The bool result is true when a new record was created.
func (s *Service) Register(ctx context.Context, deviceID, mac string) (ApprovalState, bool, error) {
	if deviceID == "" || mac == "" {
		return "", false, ErrMissingFields
	}
	if err := ValidateDeviceID(deviceID); err != nil {
		return "", false, err
	}

	existing, err := s.repo.GetByID(ctx, deviceID)
	if err == nil {
		return existing.ApprovalState(), false, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return "", false, fmt.Errorf("looking up device: %w", err)
	}

	d := &Device{ID: deviceID, MAC: mac}
	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, ErrDeviceExists) {
			// Lost a registration race; report the winner's state
			existing, err := s.repo.GetByID(ctx, deviceID)
			if err != nil {
				return "", false, fmt.Errorf("looking up device: %w", err)
			}
			return existing.ApprovalState(), false, nil
		}
		return "", false, err
	}

	s.logger.Info("device registered", "device_id", deviceID)
	return ApprovalPending, true, nil
}

// Authorize approves a device, issuing its API key exactly once.
// Calling it again returns the existing record with the key unchanged.
func (s *Service) Authorize(ctx context.Context, deviceID string) (*Device, error) {
	d, err := s.repo.Authorize(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("device authorized", "device_id", deviceID)
	return d, nil
}

// IssueCredentials exchanges a device_id/mac pair for a device JWT plus
// broker connection parameters. The stored MAC must match exactly and the
// device must be approved; either failure yields the same ErrNotAuthorized
// so a caller cannot probe which field was wrong.
func (s *Service) IssueCredentials(ctx context.Context, deviceID, mac string) (*Credentials, error) {
	d, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if !d.Authorized || d.MAC != mac {
		return nil, ErrNotAuthorized
	}

	token, err := auth.GenerateAccessToken(d.ID, auth.TypeDevice, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing device token: %w", err)
	}

	return &Credentials{
		DeviceID: d.ID,
		JWT:      token,
		MQTTHost: s.cfg.BrokerHost,
		MQTTPort: s.cfg.BrokerPort,
		Topic:    s.Topic(d.ID),
	}, nil
}

// RenewToken re-issues a device access token for a still-authorized device.
// An unknown or unapproved device gets the same ErrNotAuthorized.
func (s *Service) RenewToken(ctx context.Context, deviceID string) (string, error) {
	d, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return "", ErrNotAuthorized
		}
		return "", err
	}

	if !d.Authorized {
		return "", ErrNotAuthorized
	}

	token, err := auth.GenerateAccessToken(d.ID, auth.TypeDevice, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("renewing device token: %w", err)
	}
	return token, nil
}

// Status returns the liveness view of a device.
func (s *Service) Status(ctx context.Context, deviceID string) (*Device, error) {
	return s.repo.GetByID(ctx, deviceID)
}

// List returns all registered devices, excluding the reserved principal.
func (s *Service) List(ctx context.Context) ([]Device, error) {
	return s.repo.List(ctx, s.cfg.SystemUsername)
}

// Stats returns fleet counts, excluding the reserved principal.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx, s.cfg.SystemUsername)
}

// Sweep demotes active devices not seen within the threshold.
func (s *Service) Sweep(ctx context.Context, threshold time.Duration) (int64, error) {
	demoted, err := s.repo.SweepInactive(ctx, threshold)
	if err != nil {
		return 0, err
	}
	if demoted > 0 {
		s.logger.Info("inactivity sweep demoted devices", "count", demoted)
	}
	return demoted, nil
}
