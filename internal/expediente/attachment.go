package expediente

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// defaultMimeType is used when the extension is unknown.
const defaultMimeType = "application/octet-stream"

// Attachment is a file to upload into a case folder. Open is called once,
// right before the upload, and the reader is closed afterwards.
type Attachment struct {
	Name     string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// FileAttachment describes a local file. The MIME type comes from the
// extension.
func FileAttachment(path string) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("expediente: attachment %s: %w", path, err)
	}

	if info.IsDir() {
		return Attachment{}, fmt.Errorf("expediente: attachment %s is a directory", path)
	}

	name := filepath.Base(path)

	return Attachment{
		Name:     name,
		Size:     info.Size(),
		MimeType: MimeTypeFor(name),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// BytesAttachment wraps in-memory content. An empty mimeType is derived from
// the name.
func BytesAttachment(name string, data []byte, mimeType string) Attachment {
	if mimeType == "" {
		mimeType = MimeTypeFor(name)
	}

	return Attachment{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// MimeTypeFor guesses a MIME type from a file name's extension.
func MimeTypeFor(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}

	return defaultMimeType
}
