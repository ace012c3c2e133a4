package tree

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/pkg/transport"
)

// Entry type discriminants used in listing records.
const (
	documentType = "0"
	folderType   = "80000000"
)

// DefaultMaxDepth bounds tree recursion. The vendor tree is expected
// acyclic but this is not independently verified.
const DefaultMaxDepth = 64

// recordFields is the number of colon-separated fields in a listing line:
// hash:type:documentId:subfiles:size.
const recordFields = 5

// fileSuffixRe recognizes document-ids carrying a file extension, which
// marks a terminal leaf in the hash-tree encoding.
var fileSuffixRe = regexp.MustCompile(`(?i)\.[a-z0-9]+$`)

// Kind discriminates the entry variants. Callers switching on Kind must
// handle all three.
type Kind int

const (
	KindRoot Kind = iota
	KindCollection
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCollection:
		return "collection"
	case KindDocument:
		return "document"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is a node in the hash tree.
//
//   - KindRoot: Hash is the resolved root hash; SchemaVersion and Entries
//     are populated.
//   - KindCollection: a folder-like node whose Entries were resolved by
//     recursively downloading its own hash listing.
//   - KindDocument: a leaf; no Entries.
type Entry struct {
	Kind          Kind
	Hash          string
	DocumentID    string
	SchemaVersion int
	Subfiles      int
	Size          int64
	Entries       []*Entry
}

// UnknownEntryTypeError reports a listing record with an unrecognized
// type discriminant.
type UnknownEntryTypeError struct {
	Type string
	Line string
}

func (e *UnknownEntryTypeError) Error() string {
	return fmt.Sprintf("unknown entry type %q in record %q", e.Type, e.Line)
}

// MalformedEntryRecordError reports a listing record that does not parse.
type MalformedEntryRecordError struct {
	Line   string
	Reason string
}

func (e *MalformedEntryRecordError) Error() string {
	return fmt.Sprintf("malformed entry record %q: %s", e.Line, e.Reason)
}

// MalformedTreeError reports a tree violating structural expectations:
// a hash revisited during recursion or a depth beyond the resolver limit.
type MalformedTreeError struct {
	Hash   string
	Reason string
}

func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("malformed tree at hash %s: %s", e.Hash, e.Reason)
}

// Config holds tree resolver configuration.
type Config struct {
	// Cloud is the internal-cloud client used for signed-URL resolution.
	Cloud transport.Client
	// Download fetches content behind absolute signed URLs.
	Download Downloader
	// MaxDepth bounds recursion; 0 means DefaultMaxDepth.
	MaxDepth int
}

// Resolver turns hashes into signed URLs and listing content into typed
// entry hierarchies.
type Resolver struct {
	cloud    transport.Client
	download Downloader
	maxDepth int
}

// NewResolver creates a tree resolver.
func NewResolver(cfg Config) *Resolver {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Resolver{
		cloud:    cfg.Cloud,
		download: cfg.Download,
		maxDepth: cfg.MaxDepth,
	}
}

// Root resolves the full hash tree from the root alias down. Every
// collection is recursively downloaded and parsed; the result is either a
// fully resolved tree or an error (no partially resolved collections are
// returned).
func (r *Resolver) Root(ctx context.Context) (*Entry, error) {
	url, err := r.RootURL(ctx)
	if err != nil {
		return nil, err
	}
	content, err := url.FetchContent(ctx)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{url.RelativePath: true}
	version, entries, err := r.resolveListing(ctx, content, visited, 0)
	if err != nil {
		return nil, err
	}

	root := &Entry{
		Kind:          KindRoot,
		Hash:          url.RelativePath,
		SchemaVersion: version,
		Entries:       entries,
	}
	logging.Info("hash tree resolved",
		zap.String("root_hash", root.Hash),
		zap.Int("entries", Count(root)-1),
	)
	return root, nil
}

// resolveListing parses one listing's content and recursively resolves
// its collection entries.
func (r *Resolver) resolveListing(ctx context.Context, content string, visited map[string]bool, depth int) (int, []*Entry, error) {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	version, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, nil, &MalformedEntryRecordError{Line: lines[0], Reason: "schema version is not an integer"}
	}

	entries := make([]*Entry, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		entry, err := r.resolveEntry(ctx, line, visited, depth)
		if err != nil {
			return 0, nil, err
		}
		entries = append(entries, entry)
	}
	return version, entries, nil
}

// resolveEntry parses one listing record. Document leaves terminate;
// collections recurse through their own hash listing.
func (r *Resolver) resolveEntry(ctx context.Context, line string, visited map[string]bool, depth int) (*Entry, error) {
	rec, err := parseRecord(line)
	if err != nil {
		return nil, err
	}

	// Terminal either way: an explicit document discriminant, or a
	// document-id carrying a file suffix.
	if rec.entryType == documentType || fileSuffixRe.MatchString(rec.documentID) {
		return &Entry{
			Kind:       KindDocument,
			Hash:       rec.hash,
			DocumentID: rec.documentID,
			Subfiles:   rec.subfiles,
			Size:       rec.size,
		}, nil
	}

	if depth+1 > r.maxDepth {
		return nil, &MalformedTreeError{Hash: rec.hash, Reason: fmt.Sprintf("depth exceeds limit %d", r.maxDepth)}
	}
	if visited[rec.hash] {
		return nil, &MalformedTreeError{Hash: rec.hash, Reason: "hash revisited during resolution (cycle)"}
	}
	visited[rec.hash] = true

	url, err := r.URLForHash(ctx, rec.hash)
	if err != nil {
		return nil, err
	}
	content, err := url.FetchContent(ctx)
	if err != nil {
		return nil, err
	}
	version, entries, err := r.resolveListing(ctx, content, visited, depth+1)
	if err != nil {
		return nil, err
	}

	return &Entry{
		Kind:          KindCollection,
		Hash:          rec.hash,
		DocumentID:    rec.documentID,
		SchemaVersion: version,
		Subfiles:      rec.subfiles,
		Size:          rec.size,
		Entries:       entries,
	}, nil
}

type record struct {
	hash       string
	entryType  string
	documentID string
	subfiles   int
	size       int64
}

// parseRecord splits a hash:type:documentId:subfiles:size line. Empty
// subfiles/size fields read as zero; anything else must parse.
func parseRecord(line string) (record, error) {
	parts := strings.Split(line, ":")
	if len(parts) != recordFields {
		return record{}, &MalformedEntryRecordError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", recordFields, len(parts)),
		}
	}

	rec := record{
		hash:       parts[0],
		entryType:  parts[1],
		documentID: parts[2],
	}
	if rec.entryType != documentType && rec.entryType != folderType {
		return record{}, &UnknownEntryTypeError{Type: rec.entryType, Line: line}
	}

	if s := strings.TrimSpace(parts[3]); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return record{}, &MalformedEntryRecordError{Line: line, Reason: "subfiles is not an integer"}
		}
		rec.subfiles = n
	}
	if s := strings.TrimSpace(parts[4]); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return record{}, &MalformedEntryRecordError{Line: line, Reason: "size is not an integer"}
		}
		rec.size = n
	}
	return rec, nil
}
