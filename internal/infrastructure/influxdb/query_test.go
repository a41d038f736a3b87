package influxdb

import (
	"context"
	"reflect"
	"testing"
)

func TestClassifyFields(t *testing.T) {
	all := map[string]struct{}{
		"temperature": {},
		"humidity":    {},
		"pressure":    {},
	}
	recent := map[string]struct{}{
		"temperature": {},
	}

	status := classifyFields(all, recent)

	if !reflect.DeepEqual(status.Active, []string{"temperature"}) {
		t.Errorf("Active = %v, want [temperature]", status.Active)
	}
	if !reflect.DeepEqual(status.Inactive, []string{"humidity", "pressure"}) {
		t.Errorf("Inactive = %v, want [humidity pressure]", status.Inactive)
	}
}

func TestClassifyFields_Empty(t *testing.T) {
	status := classifyFields(map[string]struct{}{}, map[string]struct{}{})

	// JSON must encode [] rather than null
	if status.Active == nil || status.Inactive == nil {
		t.Error("classifyFields() should return empty slices, not nil")
	}
}

func TestSensorStatus_NotConnected(t *testing.T) {
	var c *Client
	if _, err := c.SensorStatus(context.Background(), "dev1"); err == nil {
		t.Error("SensorStatus() on nil client should error")
	}
}
