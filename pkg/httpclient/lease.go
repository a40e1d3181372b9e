package httpclient

import (
	"context"
	"fmt"
	"net/http"

	// Packages
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// claim posts a claim against one route family, returning nil when the
// queue is empty.
func (c *Client) claim(ctx context.Context, base, worker string) (*schema.Item, error) {
	payload := struct {
		Worker string `json:"worker"`
	}{
		Worker: worker,
	}

	req, err := client.NewJSONRequest(payload)
	if err != nil {
		return nil, err
	}

	// Perform request. The response body is null when there is no work
	var response schema.Item
	if err := c.DoWithContext(ctx, req, &response, client.OptPath(base, "claim")); err != nil {
		return nil, err
	}
	if response.Id == 0 {
		return nil, nil
	}

	// Return the claimed item
	return &response, nil
}

// put performs one lease transition (progress, heartbeat, complete, fail)
// against a claimed item.
func (c *Client) put(ctx context.Context, base string, id uint64, op string, payload any) error {
	req, err := client.NewJSONRequestEx(http.MethodPut, payload, "")
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, req, nil, client.OptPath(base, fmt.Sprint(id), op))
}
