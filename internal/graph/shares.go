package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// shareToken encodes a sharing URL into the Graph "u!" share token:
// base64url of the raw URL with padding stripped.
func shareToken(shareURL string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(shareURL))
	enc = strings.TrimRight(enc, "=")
	enc = strings.ReplaceAll(enc, "/", "_")
	enc = strings.ReplaceAll(enc, "+", "-")

	return "u!" + enc
}

// ResolveShare resolves a sharing URL to the drive and item it points at.
// The primary path is the /shares endpoint; when the tenant rejects that
// (some SharePoint personal sites 403 share tokens minted by other apps),
// the site-path fallback walks /sites/{host}:{path} to the default drive
// root instead.
func (c *Client) ResolveShare(ctx context.Context, shareURL string) (FolderRef, error) {
	if shareURL == "" {
		return FolderRef{}, fmt.Errorf("graph: empty sharing URL")
	}

	ref, err := c.resolveViaShareToken(ctx, shareURL)
	if err == nil {
		return ref, nil
	}

	if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrNotFound) {
		return FolderRef{}, err
	}

	c.logger.Debug("share token resolution rejected, trying site path",
		slog.String("error", err.Error()),
	)

	ref, siteErr := c.resolveViaSitePath(ctx, shareURL)
	if siteErr != nil {
		// The original rejection is the more informative error.
		return FolderRef{}, fmt.Errorf("graph: resolving sharing URL: %w (site fallback: %v)", err, siteErr)
	}

	return ref, nil
}

func (c *Client) resolveViaShareToken(ctx context.Context, shareURL string) (FolderRef, error) {
	path := fmt.Sprintf("/shares/%s/driveItem?$select=id,name,parentReference,folder", shareToken(shareURL))

	resp, err := c.Do(ctx, "GET", path, nil)
	if err != nil {
		return FolderRef{}, err
	}
	defer resp.Body.Close()

	var item driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return FolderRef{}, fmt.Errorf("graph: parsing shared item: %w", err)
	}

	if item.ID == "" || item.ParentReference.DriveID == "" {
		return FolderRef{}, fmt.Errorf("graph: shared item response missing identifiers")
	}

	return FolderRef{
		DriveID: strings.ToLower(item.ParentReference.DriveID),
		ItemID:  item.ID,
	}, nil
}

// resolveViaSitePath maps the sharing URL host and path onto the site's
// default drive and returns its root. Folder-level granularity is lost on
// this path, which is acceptable for whole-drive shares.
func (c *Client) resolveViaSitePath(ctx context.Context, shareURL string) (FolderRef, error) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return FolderRef{}, fmt.Errorf("graph: parsing sharing URL: %w", err)
	}

	sitePath := u.Path
	if i := strings.Index(sitePath, "/personal/"); i >= 0 {
		if j := strings.Index(sitePath[i+len("/personal/"):], "/"); j >= 0 {
			sitePath = sitePath[:i+len("/personal/")+j]
		}
	}

	resp, err := c.Do(ctx, "GET", fmt.Sprintf("/sites/%s:%s:/drive?$select=id", u.Host, sitePath), nil)
	if err != nil {
		return FolderRef{}, err
	}
	defer resp.Body.Close()

	var drive struct {
		ID string `json:"id"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&drive); err != nil {
		return FolderRef{}, fmt.Errorf("graph: parsing site drive: %w", err)
	}

	if drive.ID == "" {
		return FolderRef{}, fmt.Errorf("graph: site drive response missing id")
	}

	return FolderRef{DriveID: strings.ToLower(drive.ID), ItemID: "root"}, nil
}
