package bridge

import (
	"context"
	"crypto/subtle"

	"github.com/euklyde/iothink-core/internal/auth"
	"github.com/euklyde/iothink-core/internal/device"
	"github.com/euklyde/iothink-core/internal/infrastructure/logging"
)

// Config carries the injected settings for the decision engine.
type Config struct {
	// JWTSecret verifies device tokens on the token-variant hooks.
	JWTSecret string

	// TopicPrefix is the single topic level devices publish under.
	TopicPrefix string

	// SystemUsername and SystemAPIKey identify the reserved telemetry
	// principal. It lives only in configuration, never in the device table.
	SystemUsername string
	SystemAPIKey   string
}

// Decision is the verdict for a single hook query. There are no partial
// states: OK is the whole answer, Reason explains a deny.
type Decision struct {
	OK     bool
	Reason string
}

func grant() Decision {
	return Decision{OK: true}
}

func deny(reason string) Decision {
	return Decision{OK: false, Reason: reason}
}

// principal is the normalised identity both hook variants reduce to
// before the shared decision logic runs.
type principal struct {
	id     string
	system bool
}

// Bridge implements the broker hook decision engine.
type Bridge struct {
	devices device.Repository
	cfg     Config
	logger  *logging.Logger
}

// New creates a broker auth bridge.
func New(devices device.Repository, cfg Config, logger *logging.Logger) *Bridge {
	return &Bridge{
		devices: devices,
		cfg:     cfg,
		logger:  logger.With("component", "bridge"),
	}
}

// Authenticate answers the legacy CONNECT hook. The reserved system
// principal is granted on exact credential match without a device lookup;
// everything else must be an approved device presenting its API key.
func (b *Bridge) Authenticate(ctx context.Context, username, password string) Decision {
	if username == "" || password == "" {
		return b.denied("connect", username, "missing credentials")
	}

	if b.isSystemPrincipal(username, password) {
		return grant()
	}

	d, err := b.devices.GetByID(ctx, username)
	if err != nil {
		// Unknown device and store failure both fail closed
		return b.denied("connect", username, "unknown device")
	}

	if !d.Authorized {
		return b.denied("connect", username, "device not authorized")
	}

	if subtle.ConstantTimeCompare([]byte(d.APIKey), []byte(password)) != 1 {
		return b.denied("connect", username, "bad credentials")
	}

	return b.grantWithTouch(ctx, "connect", d.ID)
}

// AuthenticateToken answers the token CONNECT hook. The bearer token must
// carry type=device and name a registered, approved device.
func (b *Bridge) AuthenticateToken(ctx context.Context, token string) Decision {
	p, dec := b.deviceSubject(token)
	if !dec.OK {
		return dec
	}

	d, err := b.devices.GetByID(ctx, p.id)
	if err != nil {
		return b.denied("connect", p.id, "unknown device")
	}

	if !d.Authorized {
		return b.denied("connect", p.id, "device not authorized")
	}

	return b.grantWithTouch(ctx, "connect", d.ID)
}

// Superuser answers the legacy superuser hook. Only the reserved system
// principal is ever superuser; it is identified here by username alone
// because the broker has already authenticated the connection.
func (b *Bridge) Superuser(_ context.Context, username string) Decision {
	if username == "" {
		return deny("missing username")
	}
	if username == b.cfg.SystemUsername {
		return grant()
	}
	return deny("not a superuser")
}

// SuperuserToken answers the token superuser hook. Token principals are
// devices, and no device is ever superuser, so the answer is always no.
func (b *Bridge) SuperuserToken(_ context.Context, _ string) Decision {
	return deny("not a superuser")
}

// CheckACL answers the legacy ACL hook.
func (b *Bridge) CheckACL(ctx context.Context, username, topic string) Decision {
	if username == "" || topic == "" {
		return b.denied("acl", username, "missing username or topic")
	}

	p := principal{id: username, system: username == b.cfg.SystemUsername}
	return b.checkTopic(ctx, p, topic)
}

// CheckACLToken answers the token ACL hook. The reserved principal never
// authenticates by token, so only device subjects reach the topic check.
func (b *Bridge) CheckACLToken(ctx context.Context, token, topic string) Decision {
	if topic == "" {
		return deny("missing topic")
	}

	p, dec := b.deviceSubject(token)
	if !dec.OK {
		return dec
	}

	return b.checkTopic(ctx, p, topic)
}

// checkTopic is the shared ACL decision: the system principal may use any
// topic, an ordinary device exactly its own `<prefix>/<device_id>` level.
// A grant counts as liveness, same as a successful connect.
func (b *Bridge) checkTopic(ctx context.Context, p principal, topic string) Decision {
	if p.system {
		return grant()
	}

	if topic != b.cfg.TopicPrefix+"/"+p.id {
		return b.denied("acl", p.id, "topic not permitted")
	}

	return b.grantWithTouch(ctx, "acl", p.id)
}

// deviceSubject verifies a bearer token and extracts its device subject.
func (b *Bridge) deviceSubject(token string) (principal, Decision) {
	if token == "" {
		return principal{}, deny("missing token")
	}

	claims, err := auth.ParseToken(token, b.cfg.JWTSecret)
	if err != nil {
		return principal{}, deny("invalid token")
	}

	if claims.Type != auth.TypeDevice {
		return principal{}, deny("wrong token type")
	}

	return principal{id: claims.Subject}, grant()
}

// grantWithTouch records liveness and grants. A touch that fails turns
// into a deny: the store is the source of truth for device state, and a
// grant the store couldn't observe is worse than a retried connect.
func (b *Bridge) grantWithTouch(ctx context.Context, hook, deviceID string) Decision {
	if err := b.devices.Touch(ctx, deviceID); err != nil {
		b.logger.Error("liveness touch failed", "hook", hook, "device_id", deviceID, "error", err)
		return deny("internal error")
	}
	return grant()
}

// isSystemPrincipal compares both credential parts in constant time.
func (b *Bridge) isSystemPrincipal(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(b.cfg.SystemUsername))
	keyOK := subtle.ConstantTimeCompare([]byte(password), []byte(b.cfg.SystemAPIKey))
	return userOK&keyOK == 1
}

func (b *Bridge) denied(hook, id, reason string) Decision {
	b.logger.Debug("hook denied", "hook", hook, "principal", id, "reason", reason)
	return deny(reason)
}
