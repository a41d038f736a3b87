package influxdb

import (
	"context"
	"fmt"
	"sort"
)

// Windows for classifying a sensor field as live or stale. A field that
// reported within the active window is active; one that reported within
// the lookback but not since is inactive; anything older is not reported
// at all.
const (
	sensorActiveWindow = "-5m"
	sensorLookback     = "-24h"
)

// SensorStatus partitions a device's sensor fields by recency.
type SensorStatus struct {
	Active   []string `json:"active"`
	Inactive []string `json:"inactive"`
}

// SensorStatus returns which of a device's telemetry fields have reported
// within the active window, and which have gone quiet.
func (c *Client) SensorStatus(ctx context.Context, deviceID string) (*SensorStatus, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}

	recent, err := c.fieldKeys(ctx, deviceID, sensorActiveWindow)
	if err != nil {
		return nil, err
	}

	all, err := c.fieldKeys(ctx, deviceID, sensorLookback)
	if err != nil {
		return nil, err
	}

	return classifyFields(all, recent), nil
}

// fieldKeys returns the distinct field names a device reported since the
// given flux range start.
func (c *Client) fieldKeys(ctx context.Context, deviceID, start string) (map[string]struct{}, error) {
	flux := fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: %s)
			|> filter(fn: (r) => r.device_id == %q)
			|> keep(columns: ["_field"])
			|> distinct(column: "_field")`,
		c.cfg.Bucket, start, deviceID)

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer result.Close()

	fields := map[string]struct{}{}
	for result.Next() {
		if v, ok := result.Record().Value().(string); ok {
			fields[v] = struct{}{}
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return fields, nil
}

// classifyFields splits the full field set into active (seen recently)
// and inactive (seen in the lookback but gone quiet), sorted for stable
// API responses.
func classifyFields(all, recent map[string]struct{}) *SensorStatus {
	status := &SensorStatus{
		Active:   []string{},
		Inactive: []string{},
	}

	for field := range all {
		if _, ok := recent[field]; ok {
			status.Active = append(status.Active, field)
		} else {
			status.Inactive = append(status.Inactive, field)
		}
	}

	sort.Strings(status.Active)
	sort.Strings(status.Inactive)
	return status
}
