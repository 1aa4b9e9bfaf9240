package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Download opens the content stream for a remote file. When the listing
// carried a pre-authenticated download URL it is fetched directly without
// an Authorization header (the URL embeds its own short-lived grant).
// Otherwise the /content endpoint is probed without following redirects
// and the Location target is fetched the same way.
//
// The caller owns the returned ReadCloser.
func (c *Client) Download(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	contentURL := entry.DownloadURL

	if contentURL == "" {
		var err error

		contentURL, err = c.contentLocation(ctx, entry)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.do(ctx, c.contentClient, "GET", contentURL, nil, false)
	if err != nil {
		return nil, fmt.Errorf("graph: downloading %s: %w", entry.Name, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("graph: downloading %s: unexpected status %d", entry.Name, resp.StatusCode)
	}

	return resp.Body, nil
}

// contentLocation asks /content where the payload lives. Graph answers
// with a 302 to a pre-authenticated URL; anything else is an error.
func (c *Client) contentLocation(ctx context.Context, entry Entry) (string, error) {
	path := fmt.Sprintf("%s/drives/%s/items/%s/content", c.baseURL, entry.DriveID, entry.ID)

	resp, err := c.do(ctx, c.noRedirect, "GET", path, nil, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusMovedPermanently &&
		resp.StatusCode != http.StatusTemporaryRedirect {
		return "", fmt.Errorf("graph: content probe for %s: unexpected status %d", entry.Name, resp.StatusCode)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("graph: content probe for %s: redirect without Location", entry.Name)
	}

	return loc, nil
}
