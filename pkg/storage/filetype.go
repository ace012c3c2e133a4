// Package storage uploads file buffers to the reMarkable Cloud. Content
// is classified by magic bytes; only PDF and EPUB are accepted.
package storage

import (
	"bytes"
	"fmt"
)

// FileType pairs a file extension with its MIME type.
type FileType struct {
	Extension string
	MIMEType  string
}

var (
	// PDF is the portable document format.
	PDF = FileType{Extension: "pdf", MIMEType: "application/pdf"}
	// EPUB is the electronic publication format.
	EPUB = FileType{Extension: "epub", MIMEType: "application/epub+zip"}
)

var (
	pdfMagic  = []byte("%PDF")
	epubMagic = []byte{0x50, 0x4b, 0x03, 0x04}
)

// UnsupportedFileExtensionError reports content whose magic bytes match
// none of the supported formats.
type UnsupportedFileExtensionError struct {
	Name string
}

func (e *UnsupportedFileExtensionError) Error() string {
	return fmt.Sprintf("unsupported file type for %q: only PDF and EPUB are accepted", e.Name)
}

// DetectFileType classifies content by its leading magic bytes. The name
// plays no role in classification and only labels the error.
func DetectFileType(name string, data []byte) (FileType, error) {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return PDF, nil
	case bytes.HasPrefix(data, epubMagic):
		return EPUB, nil
	default:
		return FileType{}, &UnsupportedFileExtensionError{Name: name}
	}
}
