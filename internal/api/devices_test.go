package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/euklyde/iothink-core/internal/device"
)

func TestRegisterDevice(t *testing.T) {
	env := newTestEnv(t)

	// New device: 202 pending
	rec := env.doJSON(t, http.MethodPost, "/devices/register",
		map[string]string{"device_id": "dev1", "mac": "AA:BB"}, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first register status = %d, want 202", rec.Code)
	}

	// Same device again: 200 pending, no duplicate
	rec = env.doJSON(t, http.MethodPost, "/devices/register",
		map[string]string{"device_id": "dev1", "mac": "AA:BB"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat register status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "pending" {
		t.Errorf("repeat register status = %q, want pending", body["status"])
	}

	// After approval the answer flips to approved
	if _, err := env.devices.Authorize(context.Background(), "dev1"); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	rec = env.doJSON(t, http.MethodPost, "/devices/register",
		map[string]string{"device_id": "dev1", "mac": "AA:BB"}, "")
	decodeBody(t, rec, &body)
	if body["status"] != "approved" {
		t.Errorf("register after approval status = %q, want approved", body["status"])
	}

	// Missing fields: 400
	rec = env.doJSON(t, http.MethodPost, "/devices/register",
		map[string]string{"device_id": "dev2"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("register missing mac status = %d, want 400", rec.Code)
	}
}

func TestDeviceCredentials(t *testing.T) {
	env := newTestEnv(t)
	seedDevice(t, env, "dev1", "AA:BB", true)
	seedDevice(t, env, "pending", "CC:DD", false)

	// Approved device with matching MAC gets the full bundle
	rec := env.doJSON(t, http.MethodPost, "/devices/credentials",
		map[string]string{"device_id": "dev1", "mac": "AA:BB"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("credentials status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["authorized"] != true {
		t.Error("authorized should be true")
	}
	if body["jwt"] == "" || body["jwt"] == nil {
		t.Error("jwt should be present")
	}
	if body["topic"] != "pico/dev1" {
		t.Errorf("topic = %v, want pico/dev1", body["topic"])
	}
	if body["mqtt_host"] != "broker.test" {
		t.Errorf("mqtt_host = %v, want broker.test", body["mqtt_host"])
	}

	// MAC mismatch and unapproved device: identical 403 bodies
	for name, req := range map[string]map[string]string{
		"mac mismatch": {"device_id": "dev1", "mac": "XX:XX"},
		"unapproved":   {"device_id": "pending", "mac": "CC:DD"},
	} {
		rec := env.doJSON(t, http.MethodPost, "/devices/credentials", req, "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s status = %d, want 403", name, rec.Code)
		}
		var denied map[string]any
		decodeBody(t, rec, &denied)
		if denied["authorized"] != false {
			t.Errorf("%s body = %v, want {authorized:false}", name, denied)
		}
	}

	// Unknown device: 404
	rec = env.doJSON(t, http.MethodPost, "/devices/credentials",
		map[string]string{"device_id": "ghost", "mac": "AA:BB"}, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", rec.Code)
	}

	// Missing fields: 400
	rec = env.doJSON(t, http.MethodPost, "/devices/credentials",
		map[string]string{"device_id": "dev1"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing mac status = %d, want 400", rec.Code)
	}
}

func TestAuthorizeDevice(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "admin", "pw-not-used-here")
	adminTok := env.adminToken(t, admin.ID)
	seedDevice(t, env, "dev1", "AA:BB", false)

	rec := env.doJSON(t, http.MethodPatch, "/devices/dev1/authorize", nil, adminTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("authorize status = %d, want 200", rec.Code)
	}

	first, err := env.devices.GetByID(context.Background(), "dev1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	// Idempotent: second call keeps the key
	rec = env.doJSON(t, http.MethodPatch, "/devices/dev1/authorize", nil, adminTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("second authorize status = %d, want 200", rec.Code)
	}
	second, _ := env.devices.GetByID(context.Background(), "dev1")
	if second.APIKey != first.APIKey {
		t.Error("second authorize rotated the api_key")
	}

	// Unknown device: 404
	rec = env.doJSON(t, http.MethodPatch, "/devices/ghost/authorize", nil, adminTok)
	if rec.Code != http.StatusNotFound {
		t.Errorf("authorize unknown status = %d, want 404", rec.Code)
	}
}

func TestRenewToken(t *testing.T) {
	env := newTestEnv(t)
	seedDevice(t, env, "dev1", "AA:BB", true)
	seedDevice(t, env, "dev2", "CC:DD", true)

	// A device renews itself
	rec := env.doJSON(t, http.MethodGet, "/devices/dev1/token", nil, env.deviceToken(t, "dev1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("renew status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["jwt"] == "" {
		t.Error("renew should return a jwt")
	}

	// A device cannot renew another device
	rec = env.doJSON(t, http.MethodGet, "/devices/dev1/token", nil, env.deviceToken(t, "dev2"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-device renew status = %d, want 403", rec.Code)
	}
}

func TestDeviceStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "admin", "pw-not-used-here")
	adminTok := env.adminToken(t, admin.ID)
	seedDevice(t, env, "dev1", "AA:BB", true)

	rec := env.doJSON(t, http.MethodGet, "/devices/dev1/status", nil, adminTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["device_id"] != "dev1" {
		t.Errorf("device_id = %v, want dev1", body["device_id"])
	}
	if body["status"] != "inactive" {
		t.Errorf("status = %v, want inactive", body["status"])
	}

	rec = env.doJSON(t, http.MethodGet, "/devices/ghost/status", nil, adminTok)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", rec.Code)
	}
}

func TestListAndStats(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "admin", "pw-not-used-here")
	adminTok := env.adminToken(t, admin.ID)
	seedDevice(t, env, "dev1", "AA:BB", true)
	seedDevice(t, env, "dev2", "CC:DD", false)

	rec := env.doJSON(t, http.MethodGet, "/devices", nil, adminTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var list struct {
		Devices []device.Device `json:"devices"`
		Count   int             `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 2 || len(list.Devices) != 2 {
		t.Errorf("list count = %d/%d, want 2", list.Count, len(list.Devices))
	}

	rec = env.doJSON(t, http.MethodGet, "/devices/stats", nil, adminTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", rec.Code)
	}
	var stats device.Stats
	decodeBody(t, rec, &stats)
	if stats.Total != 2 || stats.Authorized != 1 || stats.Pending != 1 {
		t.Errorf("stats = %+v, want total 2, authorized 1, pending 1", stats)
	}
}

// seedDevice registers (and optionally approves) a device via the repository.
func seedDevice(t *testing.T, env *testEnv, id, mac string, authorize bool) {
	t.Helper()

	if err := env.devices.Create(context.Background(), &device.Device{ID: id, MAC: mac}); err != nil {
		t.Fatalf("creating device %s: %v", id, err)
	}
	if authorize {
		if _, err := env.devices.Authorize(context.Background(), id); err != nil {
			t.Fatalf("authorizing device %s: %v", id, err)
		}
	}
}
