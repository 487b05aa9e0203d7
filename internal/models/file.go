package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskFile kinds.
const (
	FileKindDeliverable = "deliverable"
	FileKindReference   = "reference"
)

type TaskFile struct {
	ID          uuid.UUID `json:"id"`
	TaskID      uuid.UUID `json:"task_id"`
	UploaderID  uuid.UUID `json:"uploader_id"`
	FileName    string    `json:"file_name"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}
