package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/internal/metrics"
	"github.com/rmbridge/rmbridge/pkg/transport"
)

const uploadPath = "/doc/v2/files"

// sourceTag identifies this client family to the upload endpoint.
const sourceTag = "RoR-Browser"

// FileNotUploadedError reports a buffer that has no server-side identity,
// either because the upload was rejected or because it never ran.
type FileNotUploadedError struct {
	Name       string
	StatusCode int
	Body       string
}

func (e *FileNotUploadedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("file %q has not been uploaded yet", e.Name)
	}
	return fmt.Sprintf("upload of %q failed (%d): %s", e.Name, e.StatusCode, e.Body)
}

// DocumentReference is the server-side identity of an uploaded file.
type DocumentReference struct {
	ID   string
	Hash string
}

// FileBuffer is in-memory file content staged for upload. Classification
// happens at construction; a FileBuffer always holds a supported type.
type FileBuffer struct {
	Name string
	Data []byte
	Type FileType

	cloud transport.Client
	ref   *DocumentReference
}

// NewFileBuffer stages content for upload. It fails with
// UnsupportedFileExtensionError when the content is neither PDF nor EPUB.
func NewFileBuffer(name string, data []byte, cloud transport.Client) (*FileBuffer, error) {
	fileType, err := DetectFileType(name, data)
	if err != nil {
		return nil, err
	}
	return &FileBuffer{
		Name:  name,
		Data:  data,
		Type:  fileType,
		cloud: cloud,
	}, nil
}

// FromLocalFile reads a file from disk and stages it for upload. The
// buffer name is the file's base name.
func FromLocalFile(path string, cloud transport.Client) (*FileBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewFileBuffer(filepath.Base(path), data, cloud)
}

// Uploaded reports whether the buffer has a server-side identity.
func (b *FileBuffer) Uploaded() bool {
	return b.ref != nil
}

// Reference returns the server-side identity of the uploaded buffer. It
// fails with FileNotUploadedError before a successful Upload.
func (b *FileBuffer) Reference() (*DocumentReference, error) {
	if b.ref == nil {
		return nil, &FileNotUploadedError{Name: b.Name}
	}
	return b.ref, nil
}

// Upload pushes the buffer to the cloud. Only a 201 response counts as
// success; anything else fails with FileNotUploadedError and leaves the
// buffer without a reference.
func (b *FileBuffer) Upload(ctx context.Context) (*DocumentReference, error) {
	meta, err := json.Marshal(map[string]string{"file_name": b.Name})
	if err != nil {
		return nil, err
	}

	resp, err := b.cloud.Post(ctx, uploadPath, b.Data, map[string]string{
		"Content-Type": b.Type.MIMEType,
		"rm-meta":      base64.StdEncoding.EncodeToString(meta),
		"rm-source":    sourceTag,
	})
	if err != nil {
		metrics.RecordUpload(0, false)
		return nil, fmt.Errorf("upload of %q: %w", b.Name, err)
	}
	if resp.StatusCode != http.StatusCreated {
		metrics.RecordUpload(0, false)
		return nil, &FileNotUploadedError{Name: b.Name, StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	var payload struct {
		DocID string `json:"docID"`
		Hash  string `json:"hash"`
	}
	if err := resp.JSON(&payload); err != nil {
		metrics.RecordUpload(0, false)
		return nil, fmt.Errorf("upload of %q: parse response: %w", b.Name, err)
	}

	b.ref = &DocumentReference{ID: payload.DocID, Hash: payload.Hash}
	metrics.RecordUpload(int64(len(b.Data)), true)
	logging.Info("file uploaded",
		zap.String("name", b.Name),
		zap.String("doc_id", b.ref.ID),
		zap.Int("bytes", len(b.Data)),
	)
	return b.ref, nil
}
