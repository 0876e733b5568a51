package models

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const videoPrefix = "video/"

// SelectedFile is the video chosen for upload.
//
// The byte stream is opened lazily so a file can be selected, rejected or replaced without reading it.
type SelectedFile struct {
	Name     string
	MIMEType string
	Size     int64
	ModTime  time.Time

	path string
	open func() (io.ReadCloser, error)
}

// NewSelectedFile builds a [SelectedFile] around an arbitrary stream opener.
func NewSelectedFile(name, mimeType string, size int64, open func() (io.ReadCloser, error)) *SelectedFile {
	return &SelectedFile{Name: name, MIMEType: mimeType, Size: size, open: open}
}

// OpenSelectedFile stats the file at path and detects its MIME type from content, falling back to the extension.
func OpenSelectedFile(path string) (*SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect type of %s: %w", path, err)
	}

	mimeType := mt.String()
	if mt.Is("application/octet-stream") {
		if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
			mimeType = byExt
		}
	}
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = base
	}

	return &SelectedFile{
		Name:     info.Name(),
		MIMEType: mimeType,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		path:     path,
		open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Path returns the on-disk location, empty for in-memory files.
func (f *SelectedFile) Path() string { return f.path }

// IsVideo reports whether the MIME type has the video prefix.
func (f *SelectedFile) IsVideo() bool {
	return strings.HasPrefix(strings.ToLower(f.MIMEType), videoPrefix)
}

// Open returns a fresh stream over the file contents. Callers close it.
func (f *SelectedFile) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("no content available for %s", f.Name)
	}
	return f.open()
}

// Changed reports whether the file on disk differs from what was selected.
// In-memory files never change.
func (f *SelectedFile) Changed() bool {
	if f.path == "" {
		return false
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return true
	}
	return info.Size() != f.Size || !info.ModTime().Equal(f.ModTime)
}
