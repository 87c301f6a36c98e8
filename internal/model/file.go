package model

import (
	"io"
	"time"
)

// FileContent describes the blob attached to a file row.
type FileContent struct {
	FileID    string    `json:"file_id"`
	BlobKey   string    `json:"blob_key"`
	SizeBytes int64     `json:"size_bytes"`
	MimeType  string    `json:"mime_type"`
	ETag      string    `json:"etag,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileDownload is either a redirect URL or a stream the caller must close.
type FileDownload struct {
	URL      string
	Body     io.ReadCloser
	MimeType string
	Size     int64
	Name     string
}

// LinkTarget is where a custom link sends the browser.
type LinkTarget struct {
	URL    string
	Status int
}
