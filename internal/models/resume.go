package models

import "time"

// ResumeFile records an uploaded resume document and where it was archived.
type ResumeFile struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string `gorm:"column:user_id;type:text;index" json:"user_id"`
	SessionID string `gorm:"column:session_id;type:text" json:"session_id"`
	FileName  string `gorm:"column:file_name;type:text" json:"file_name"`
	FilePath  string `gorm:"column:file_path;type:text" json:"file_path"`

	FileSize  int    `gorm:"column:file_size;type:integer" json:"file_size"`
	MimeType  string `gorm:"column:mime_type;type:text" json:"mime_type"`
	TextChars int    `gorm:"column:text_chars;type:integer" json:"text_chars"`

	UploadAt time.Time `gorm:"column:upload_at;type:timestamptz" json:"upload_at"`
}

func (ResumeFile) TableName() string { return "resume_files" }
