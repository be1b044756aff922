package types

import "time"

// Queue event types pushed to subscribed UIs.
const (
	EventUploadStarted   = "upload_started"
	EventUploadDone      = "upload_done"
	EventUploadError     = "upload_error"
	EventUploadCancelled = "upload_cancelled"
	EventQueueDrained    = "queue_drained"
)

// QueueEvent is broadcast on every queue item transition.
type QueueEvent struct {
	Type   string       `json:"type"`
	ItemID string       `json:"itemId,omitempty"`
	Name   string       `json:"name,omitempty"`
	Status UploadStatus `json:"status,omitempty"`
	Error  string       `json:"error,omitempty"`
	Time   time.Time    `json:"time"`
}
