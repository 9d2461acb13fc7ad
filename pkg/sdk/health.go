package enrichd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Health reports the aggregated service health. A degraded service
// answers 503 with the same body shape, so both are decoded into a
// report rather than returned as an error.
func (c *Client) Health(ctx context.Context) (_ HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		err = decodeAPIError(resp)
		return HealthStatus{}, fmt.Errorf("health: %w", err)
	}

	var out HealthStatus
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return HealthStatus{}, fmt.Errorf("health: decode response: %w", err)
	}
	return out, nil
}
