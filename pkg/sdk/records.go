package enrichd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type putRecordsRequest struct {
	Records []map[string]any `json:"records"`
}

// PutRecords upserts reference records into a policy's index and returns
// their ids in input order. Records may carry their own id in the "_id"
// field; the service assigns one otherwise.
func (c *Client) PutRecords(
	ctx context.Context, policy string, records []map[string]any,
) (_ []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("records.put", start, err) }()

	req, err := c.newRequest(ctx, http.MethodPut,
		"/v1/policies/"+url.PathEscape(policy)+"/records",
		putRecordsRequest{Records: records})
	if err != nil {
		return nil, err
	}

	var out struct {
		IDs   []string `json:"ids"`
		Count int      `json:"count"`
	}
	if err = c.do(req, &out); err != nil {
		return nil, fmt.Errorf("put records %s: %w", policy, err)
	}
	return out.IDs, nil
}

// DeleteRecord removes one reference record by id.
func (c *Client) DeleteRecord(ctx context.Context, policy, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("records.delete", start, err) }()

	req, err := c.newRequest(ctx, http.MethodDelete,
		"/v1/policies/"+url.PathEscape(policy)+"/records/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}

	if err = c.do(req, nil); err != nil {
		return fmt.Errorf("delete record %s/%s: %w", policy, id, err)
	}
	return nil
}
