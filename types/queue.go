package types

import "io"

// UploadStatus is the lifecycle state of a queue item.
//
// Valid transitions:
//
//	pending   -> uploading
//	uploading -> done | error | cancelled
//
// done, error and cancelled are terminal; items leave the queue only by removal.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusDone      UploadStatus = "done"
	StatusError     UploadStatus = "error"
	StatusCancelled UploadStatus = "cancelled"
)

// Terminal reports whether no further automatic transition can happen.
func (s UploadStatus) Terminal() bool {
	return s == StatusDone || s == StatusError || s == StatusCancelled
}

// FileSource describes one file handed to the upload queue. Open must return a
// fresh reader on every call: a retried transfer re-reads the payload from the start.
type FileSource struct {
	Name string
	MIME string
	Size int64
	Open func() (io.ReadCloser, error)
}

// QueueItem is one tracked upload. All fields are owned by the queue; other
// components read snapshots only.
type QueueItem struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	MIME   string       `json:"mime"`
	Size   int64        `json:"size"`
	Status UploadStatus `json:"status"`
	Error  string       `json:"error,omitempty"`

	// Width/Height are filled by the image probe for raster images, 0 otherwise.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// PreviewURI is a local data URI usable without a network round trip.
	PreviewURI string `json:"previewUri,omitempty"`
}

// Rejection reports a file that failed client-side validation and never entered
// the queue. One rejection per file, with a human-readable reason.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
