package entities

import "time"

type Attachment struct {
	ID         uint64    `json:"id" db:"id"`
	CRFID      uint64    `json:"crf_id" db:"crf_id"`
	UploadedBy uint64    `json:"uploaded_by" db:"uploaded_by"`
	FileName   string    `json:"file_name" db:"file_name"`
	FilePath   string    `json:"file_path" db:"file_path"`
	MimeType   string    `json:"mime_type" db:"mime_type"`
	FileSize   int64     `json:"file_size" db:"file_size"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
