package tree

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rmbridge/rmbridge/pkg/transport"
)

// spyDownloader fails the test when any download happens.
type spyDownloader struct {
	t *testing.T
}

func (s *spyDownloader) Get(ctx context.Context, url string) (*transport.Response, error) {
	s.t.Errorf("unexpected download of %s", url)
	return nil, errors.New("unexpected download")
}

func TestFetchExpiredURLNeverHitsNetwork(t *testing.T) {
	url := &HashURL{
		Expires:      time.Now().Add(-time.Minute),
		Method:       http.MethodGet,
		RelativePath: "HASHX",
		URL:          "https://storage.example.com/signed",
		download:     &spyDownloader{t: t},
	}

	_, err := url.Fetch(context.Background())
	var expired *ExpiredHashURLError
	if !errors.As(err, &expired) {
		t.Fatalf("err = %v, want ExpiredHashURLError", err)
	}
	if expired.RelativePath != "HASHX" {
		t.Errorf("RelativePath = %q", expired.RelativePath)
	}
}

func TestFetchRejectsNonGETMethod(t *testing.T) {
	url := &HashURL{
		Expires:      time.Now().Add(time.Hour),
		Method:       http.MethodPut,
		RelativePath: "HASHX",
		URL:          "https://storage.example.com/signed",
		download:     &spyDownloader{t: t},
	}

	_, err := url.Fetch(context.Background())
	var invalid *InvalidHashURLMethodError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidHashURLMethodError", err)
	}
	if invalid.Method != http.MethodPut {
		t.Errorf("Method = %q", invalid.Method)
	}
}

func TestExpired(t *testing.T) {
	fresh := &HashURL{Expires: time.Now().Add(time.Minute)}
	if fresh.Expired() {
		t.Error("URL before expiry must not report expired")
	}
	stale := &HashURL{Expires: time.Now().Add(-time.Minute)}
	if !stale.Expired() {
		t.Error("URL past expiry must report expired")
	}
}

func TestTreeLookups(t *testing.T) {
	nested := &Entry{Kind: KindDocument, Hash: "HASHC", DocumentID: "nested.epub"}
	folder := &Entry{Kind: KindCollection, Hash: "HASHB", DocumentID: "folder-1", Entries: []*Entry{nested}}
	doc := &Entry{Kind: KindDocument, Hash: "HASHA", DocumentID: "doc-1"}
	root := &Entry{Kind: KindRoot, Hash: "roothash", Entries: []*Entry{doc, folder}}

	if got := FindByID(root, "nested.epub"); got != nested {
		t.Errorf("FindByID = %+v", got)
	}
	if got := FindByID(root, "missing"); got != nil {
		t.Errorf("FindByID(missing) = %+v, want nil", got)
	}
	if got := FindByHash(root, "HASHB"); got != folder {
		t.Errorf("FindByHash = %+v", got)
	}

	docs := Documents(root)
	if len(docs) != 2 {
		t.Fatalf("Documents = %d, want 2", len(docs))
	}

	flat := Flatten(root)
	if len(flat) != 4 {
		t.Errorf("Flatten = %d entries, want 4", len(flat))
	}
	if flat["HASHA"] != doc {
		t.Error("Flatten must index entries by hash")
	}
}
