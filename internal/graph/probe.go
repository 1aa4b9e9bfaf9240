package graph

import "context"

// Probe performs a minimal authenticated call to verify both the token and
// connectivity. Any failure comes back as the usual typed error.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.Do(ctx, "GET", "/me?$select=id", nil)
	if err != nil {
		return err
	}

	return resp.Body.Close()
}
