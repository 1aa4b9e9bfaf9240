package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// driveItemResponse mirrors the Graph driveItem JSON. Unexported: callers
// only ever see the normalized Entry.
type driveItemResponse struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Size                 int64             `json:"size"`
	ETag                 string            `json:"eTag"`
	LastModifiedDateTime time.Time         `json:"lastModifiedDateTime"`
	DownloadURL          string            `json:"@microsoft.graph.downloadUrl"`
	ParentReference      parentRefResponse `json:"parentReference"`

	Folder  *struct{} `json:"folder"`
	Root    *struct{} `json:"root"`
	Deleted *struct{} `json:"deleted"`
}

type parentRefResponse struct {
	DriveID string `json:"driveId"`
}

type deltaResponse struct {
	Value     []driveItemResponse `json:"value"`
	NextLink  string              `json:"@odata.nextLink"`
	DeltaLink string              `json:"@odata.deltaLink"`
}

// toEntry normalizes a raw driveItem. Drive IDs are lowercased because the
// API is inconsistent about their casing across endpoints.
func (r driveItemResponse) toEntry() Entry {
	return Entry{
		ID:          r.ID,
		Name:        r.Name,
		DriveID:     strings.ToLower(r.ParentReference.DriveID),
		Size:        r.Size,
		ETag:        r.ETag,
		IsFolder:    r.Folder != nil,
		IsRoot:      r.Root != nil,
		IsDeleted:   r.Deleted != nil,
		ModifiedAt:  r.LastModifiedDateTime,
		DownloadURL: r.DownloadURL,
	}
}

// ListFolder fetches one page of the folder's delta feed. With an empty
// cursor the feed enumerates everything under the folder and establishes
// the initial cursor; with a cursor it returns only changes since that
// cursor. A stale cursor surfaces as ErrGone and the caller restarts from
// scratch. The returned Listing carries the next-cycle cursor once the
// final page is reached.
func (c *Client) ListFolder(ctx context.Context, folder FolderRef, cursor string) (*Listing, error) {
	path, err := c.deltaPath(folder, cursor)
	if err != nil {
		return nil, err
	}

	return c.listPage(ctx, path)
}

// ListAll drains every page of the folder's delta feed and returns the
// combined listing with the final cursor.
func (c *Client) ListAll(ctx context.Context, folder FolderRef, cursor string) (*Listing, error) {
	page, err := c.ListFolder(ctx, folder, cursor)
	if err != nil {
		return nil, err
	}

	all := &Listing{Entries: page.Entries}

	for page.HasMore {
		path, err := c.stripBaseURL(page.nextPage)
		if err != nil {
			return nil, err
		}

		page, err = c.listPage(ctx, path)
		if err != nil {
			return nil, err
		}

		all.Entries = append(all.Entries, page.Entries...)
	}

	all.NextCursor = page.NextCursor

	return all, nil
}

// ListChildren enumerates the direct children of an item, draining the
// /children paging. Used for subfolder descent, where the delta feed does
// not apply.
func (c *Client) ListChildren(ctx context.Context, folder FolderRef) ([]Entry, error) {
	path := fmt.Sprintf("/drives/%s/items/%s/children?$top=200", folder.DriveID, folder.ItemID)

	var entries []Entry

	for path != "" {
		resp, err := c.Do(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}

		var body deltaResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()

		if err != nil {
			return nil, fmt.Errorf("graph: parsing children response: %w", err)
		}

		for _, item := range body.Value {
			entries = append(entries, item.toEntry())
		}

		path = ""

		if body.NextLink != "" {
			path, err = c.stripBaseURL(body.NextLink)
			if err != nil {
				return nil, err
			}
		}
	}

	return entries, nil
}

func (c *Client) listPage(ctx context.Context, path string) (*Listing, error) {
	resp, err := c.Do(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body deltaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("graph: parsing delta response: %w", err)
	}

	listing := &Listing{
		Entries: make([]Entry, 0, len(body.Value)),
	}

	for _, item := range body.Value {
		listing.Entries = append(listing.Entries, item.toEntry())
	}

	switch {
	case body.NextLink != "":
		listing.HasMore = true
		listing.nextPage = body.NextLink
	case body.DeltaLink != "":
		listing.NextCursor = body.DeltaLink
	}

	return listing, nil
}

// deltaPath builds the request path for a delta call. Cursors are stored
// as the provider returned them: either a full delta link URL or a bare
// token from an older store format.
func (c *Client) deltaPath(folder FolderRef, cursor string) (string, error) {
	if cursor == "" {
		return fmt.Sprintf("/drives/%s/items/%s/delta?$top=200", folder.DriveID, folder.ItemID), nil
	}

	if strings.HasPrefix(cursor, "http://") || strings.HasPrefix(cursor, "https://") {
		return c.stripBaseURL(cursor)
	}

	return fmt.Sprintf("/drives/%s/items/%s/delta?token=%s",
		folder.DriveID, folder.ItemID, url.QueryEscape(cursor)), nil
}
