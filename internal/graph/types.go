package graph

import "time"

// Entry is a normalized remote drive entry (file or folder). Fields come
// from a single listing call; an Entry is never mutated, only re-fetched.
type Entry struct {
	ID          string
	Name        string
	DriveID     string // normalized lowercase, API casing is inconsistent
	Size        int64
	ETag        string
	IsFolder    bool
	IsRoot      bool // the watched folder itself, present in its own delta feed
	IsDeleted   bool
	ModifiedAt  time.Time
	DownloadURL string // pre-authenticated, ephemeral; never logged
}

// FolderRef identifies a resolved remote folder. ItemID may be the literal
// "root" alias when the sharing URL resolves to a drive root.
type FolderRef struct {
	DriveID string
	ItemID  string
}

// Listing is the result of one folder listing call. NextCursor is the
// provider's delta cursor for the next cycle and is present whenever the
// provider supplies one, even for an empty change set.
type Listing struct {
	Entries    []Entry
	NextCursor string
	HasMore    bool   // more pages behind nextPage
	nextPage   string // continuation URL, consumed by ListAll
}
