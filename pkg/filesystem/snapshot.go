package filesystem

import (
	"time"
)

// Listing entry types used by the flat document listing.
const (
	documentEntryType   = "DocumentType"
	collectionEntryType = "CollectionType"
)

// entryPayload is one record of the flat document listing.
type entryPayload struct {
	ID           string `json:"id"`
	Hash         string `json:"hash"`
	Type         string `json:"type"`
	FileType     string `json:"fileType"`
	VisibleName  string `json:"visibleName"`
	LastModified string `json:"lastModified"`
	LastOpened   string `json:"lastOpened"`
	Parent       string `json:"parent"`
	Pinned       bool   `json:"pinned"`
}

// Document is a file in the cloud file system.
type Document struct {
	ID           string
	Hash         string
	Name         string
	FileType     string
	LastModified time.Time
	LastOpened   time.Time
	Pinned       bool

	// Parent is nil for documents at the root level.
	Parent *Folder
}

// Folder is a directory in the cloud file system. Folders hold links to
// their children, so a snapshot can be walked in either direction.
type Folder struct {
	ID           string
	Hash         string
	Name         string
	LastModified time.Time
	Pinned       bool

	// Parent is nil for root-level folders.
	Parent    *Folder
	Folders   []*Folder
	Documents []*Document
}

// Root reports whether the folder sits at the root level.
func (f *Folder) Root() bool {
	return f.Parent == nil
}

// Snapshot is an immutable view of the cloud file system at one point in
// time. It never refreshes itself; fetch a new snapshot to observe later
// changes.
type Snapshot struct {
	documents map[string]*Document
	folders   map[string]*Folder
}

// Documents returns every document in the snapshot.
func (s *Snapshot) Documents() []*Document {
	docs := make([]*Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	return docs
}

// Folders returns every folder in the snapshot.
func (s *Snapshot) Folders() []*Folder {
	folders := make([]*Folder, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, f)
	}
	return folders
}

// RootFolders returns the folders sitting at the root level.
func (s *Snapshot) RootFolders() []*Folder {
	var roots []*Folder
	for _, f := range s.folders {
		if f.Root() {
			roots = append(roots, f)
		}
	}
	return roots
}

// RootDocuments returns the documents sitting at the root level.
func (s *Snapshot) RootDocuments() []*Document {
	var roots []*Document
	for _, d := range s.documents {
		if d.Parent == nil {
			roots = append(roots, d)
		}
	}
	return roots
}

// Document looks up a document by id. Returns nil when absent.
func (s *Snapshot) Document(id string) *Document {
	return s.documents[id]
}

// Folder looks up a folder by id. Returns nil when absent.
func (s *Snapshot) Folder(id string) *Folder {
	return s.folders[id]
}

// Size returns the total number of entries in the snapshot.
func (s *Snapshot) Size() int {
	return len(s.documents) + len(s.folders)
}

// buildSnapshot turns listing records into a linked Snapshot. Folders are
// registered first so documents and subfolders can attach to their parents
// in a second pass. Entries whose parent is unknown (trashed parents
// included) surface at the root level.
func buildSnapshot(payloads []entryPayload) *Snapshot {
	s := &Snapshot{
		documents: make(map[string]*Document),
		folders:   make(map[string]*Folder),
	}

	for _, p := range payloads {
		if p.Type != collectionEntryType {
			continue
		}
		s.folders[p.ID] = &Folder{
			ID:           p.ID,
			Hash:         p.Hash,
			Name:         p.VisibleName,
			LastModified: parseEntryTime(p.LastModified),
			Pinned:       p.Pinned,
		}
	}

	for _, p := range payloads {
		switch p.Type {
		case documentEntryType:
			doc := &Document{
				ID:           p.ID,
				Hash:         p.Hash,
				Name:         p.VisibleName,
				FileType:     p.FileType,
				LastModified: parseEntryTime(p.LastModified),
				LastOpened:   parseEntryTime(p.LastOpened),
				Pinned:       p.Pinned,
			}
			if parent := s.folders[p.Parent]; parent != nil {
				doc.Parent = parent
				parent.Documents = append(parent.Documents, doc)
			}
			s.documents[p.ID] = doc
		case collectionEntryType:
			folder := s.folders[p.ID]
			if parent := s.folders[p.Parent]; parent != nil && parent != folder {
				folder.Parent = parent
				parent.Folders = append(parent.Folders, folder)
			}
		}
	}

	return s
}

// parseEntryTime parses a listing timestamp, tolerating the empty and
// epoch-zero values the API emits for never-opened documents.
func parseEntryTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
