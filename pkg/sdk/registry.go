package enrichd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Enrichers lists all registered enrichers.
func (c *Client) Enrichers(ctx context.Context) (_ []EnricherInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("enrichers.list", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/enrichers", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []EnricherInfo `json:"items"`
	}
	if err = c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list enrichers: %w", err)
	}
	return out.Items, nil
}

// Enricher returns one enricher by name.
func (c *Client) Enricher(ctx context.Context, name string) (_ EnricherInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("enrichers.get", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet,
		"/v1/enrichers/"+url.PathEscape(name), nil)
	if err != nil {
		return EnricherInfo{}, err
	}

	var out EnricherInfo
	if err = c.do(req, &out); err != nil {
		return EnricherInfo{}, fmt.Errorf("get enricher %s: %w", name, err)
	}
	return out, nil
}

// Policies lists match policies with the state of their reference indexes.
func (c *Client) Policies(ctx context.Context) (_ []PolicyInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("policies.list", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/policies", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []PolicyInfo `json:"items"`
	}
	if err = c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return out.Items, nil
}
