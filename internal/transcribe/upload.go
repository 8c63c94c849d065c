package transcribe

import (
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used for extensions missing from the table.
const DefaultContentType = "audio/mpeg"

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
}

// Upload is one received audio file.
type Upload interface {
	Filename() string
	Size() int64
	// ContentType is the type reported by the client, possibly empty.
	ContentType() string
	Open() (io.ReadSeekCloser, error)
}

type fileHeaderUpload struct {
	fh *multipart.FileHeader
}

// FromFileHeader adapts a multipart file header. A nil header yields a nil
// Upload.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	if fh == nil {
		return nil
	}
	return fileHeaderUpload{fh: fh}
}

func (u fileHeaderUpload) Filename() string    { return u.fh.Filename }
func (u fileHeaderUpload) Size() int64         { return u.fh.Size }
func (u fileHeaderUpload) ContentType() string { return u.fh.Header.Get("Content-Type") }

func (u fileHeaderUpload) Open() (io.ReadSeekCloser, error) {
	return u.fh.Open()
}

// Extension returns the lowercased filename suffix without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// ContentTypeFor resolves the MIME type sent to providers from the file
// extension.
func ContentTypeFor(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return DefaultContentType
}

// fileType picks the MIME type persisted with the record: the reported type
// when it is specific, else a sniffed audio type, else resolved. f is
// rewound before returning.
func fileType(reported string, f io.ReadSeeker, resolved string) string {
	if mt, _, err := mime.ParseMediaType(reported); err == nil && mt != "application/octet-stream" {
		return mt
	}

	detected, err := mimetype.DetectReader(f)
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return resolved
	}
	if err == nil && strings.HasPrefix(detected.String(), "audio/") {
		return detected.String()
	}
	return resolved
}
