package graph

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deltaPageOne = `{
	"value": [
		{"id": "item-0", "name": "FlashMOD",
		 "parentReference": {"driveId": "B!DRIVE"},
		 "folder": {}, "root": {}},
		{"id": "item-1", "name": "alpha.fls", "size": 100, "eTag": "e1",
		 "lastModifiedDateTime": "2026-01-02T03:04:05Z",
		 "parentReference": {"driveId": "B!DRIVE"},
		 "file": {}},
		{"id": "item-2", "name": "Subfolder",
		 "parentReference": {"driveId": "B!DRIVE"},
		 "folder": {}}
	],
	"@odata.nextLink": "%s/drives/b!drive/items/root/delta?$skiptoken=page2"
}`

const deltaPageTwo = `{
	"value": [
		{"id": "item-3", "name": "beta.fls", "size": 200,
		 "parentReference": {"driveId": "B!DRIVE"},
		 "file": {},
		 "deleted": {"state": "deleted"}}
	],
	"@odata.deltaLink": "%s/drives/b!drive/items/root/delta?token=final-cursor"
}`

func TestListAll_DrainsPagesAndKeepsFinalCursor(t *testing.T) {
	var srvURL string

	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("$skiptoken") == "page2" {
			fmt.Fprintf(w, deltaPageTwo, srvURL)
			return
		}

		fmt.Fprintf(w, deltaPageOne, srvURL)
	})
	srvURL = srv.URL

	listing, err := c.ListAll(context.Background(), FolderRef{DriveID: "b!drive", ItemID: "root"}, "")
	require.NoError(t, err)

	require.Len(t, listing.Entries, 4)
	assert.Equal(t, srvURL+"/drives/b!drive/items/root/delta?token=final-cursor", listing.NextCursor)
	assert.False(t, listing.HasMore)

	watched := listing.Entries[0]
	assert.True(t, watched.IsFolder)
	assert.True(t, watched.IsRoot, "the watched folder carries the root facet")

	alpha := listing.Entries[1]
	assert.Equal(t, "item-1", alpha.ID)
	assert.Equal(t, "alpha.fls", alpha.Name)
	assert.Equal(t, int64(100), alpha.Size)
	assert.Equal(t, "b!drive", alpha.DriveID, "drive IDs are normalized to lowercase")
	assert.False(t, alpha.IsFolder)
	assert.False(t, alpha.IsDeleted)
	assert.Equal(t, 2026, alpha.ModifiedAt.Year())

	subfolder := listing.Entries[2]
	assert.True(t, subfolder.IsFolder)
	assert.False(t, subfolder.IsRoot)

	assert.True(t, listing.Entries[3].IsDeleted)
}

func TestListFolder_EmptyChangeSetStillCarriesCursor(t *testing.T) {
	var srvURL string

	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value": [], "@odata.deltaLink": "%s/drives/d/items/root/delta?token=t2"}`, srvURL)
	})
	srvURL = srv.URL

	listing, err := c.ListFolder(context.Background(), FolderRef{DriveID: "d", ItemID: "root"}, "")
	require.NoError(t, err)

	assert.Empty(t, listing.Entries)
	assert.NotEmpty(t, listing.NextCursor)
}

func TestListFolder_StaleCursorSurfacesGone(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resyncRequired", http.StatusGone)
	})

	_, err := c.ListFolder(context.Background(), FolderRef{DriveID: "d", ItemID: "root"}, "stale-token")
	assert.ErrorIs(t, err, ErrGone)
}

func TestDeltaPath_CursorForms(t *testing.T) {
	c := NewClient("https://graph.example.com/v1.0", nil, nil, staticToken("t"), testLogger())
	folder := FolderRef{DriveID: "d1", ItemID: "root"}

	path, err := c.deltaPath(folder, "")
	require.NoError(t, err)
	assert.Equal(t, "/drives/d1/items/root/delta?$top=200", path)

	path, err = c.deltaPath(folder, "https://graph.example.com/v1.0/drives/d1/items/root/delta?token=abc")
	require.NoError(t, err)
	assert.Equal(t, "/drives/d1/items/root/delta?token=abc", path)

	path, err = c.deltaPath(folder, "bare token")
	require.NoError(t, err)
	assert.Equal(t, "/drives/d1/items/root/delta?token=bare+token", path)
}

func TestListChildren_Paged(t *testing.T) {
	var srvURL string

	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("$skiptoken") == "c2" {
			fmt.Fprint(w, `{"value": [{"id": "k2", "name": "two.fls", "file": {}, "parentReference": {"driveId": "d"}}]}`)
			return
		}

		fmt.Fprintf(w, `{
			"value": [{"id": "k1", "name": "one.fls", "file": {}, "parentReference": {"driveId": "d"}}],
			"@odata.nextLink": "%s/drives/d/items/f1/children?$skiptoken=c2"
		}`, srvURL)
	})
	srvURL = srv.URL

	entries, err := c.ListChildren(context.Background(), FolderRef{DriveID: "d", ItemID: "f1"})
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "one.fls", entries[0].Name)
	assert.Equal(t, "two.fls", entries[1].Name)
}
