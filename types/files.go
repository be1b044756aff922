package types

import "time"

// FileRecord is the server-side metadata for one stored file.
type FileRecord struct {
	FileID    string     `json:"file_id"`
	FileName  string     `json:"file_name"`
	FileType  string     `json:"file_type"` // image | video | document
	MIME      string     `json:"content_type,omitempty"`
	FileSize  int64      `json:"file_size"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
	ShareURL  string     `json:"share_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	IsDeleted bool       `json:"is_deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// FileListResponse is the envelope returned by the list endpoints.
type FileListResponse struct {
	Files []FileRecord `json:"files"`
	Count int          `json:"count"`
}

// DeletedRecord is a soft-deleted file as seen in the recycle bin. The server
// owns it; the client only reads it and derives days-remaining from DeletedAt.
type DeletedRecord struct {
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	DeletedAt time.Time `json:"deleted_at"`
}

// BinListResponse is the recycle-bin listing envelope.
type BinListResponse struct {
	Files []DeletedRecord `json:"files"`
	Count int             `json:"count"`
}

// UploadResponse is returned by POST /files/upload.
type UploadResponse struct {
	Message string     `json:"message"`
	File    FileRecord `json:"file"`
}
