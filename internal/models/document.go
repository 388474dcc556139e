package models

import "time"

// Document is a PDF published by an administrator. Slot groups replaceable documents, such as
// the timetable of a given semester.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slot       string    `gorm:"size:64;index" json:"slot"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	FileName   string    `gorm:"size:255;not null" json:"file_name"`
	StorageKey string    `gorm:"size:512;not null" json:"storage_key"`
	URL        string    `gorm:"size:1024;not null" json:"url"`
	MimeType   string    `gorm:"size:128;not null" json:"mime_type"`
	SizeBytes  int64     `gorm:"not null" json:"size_bytes"`
	Checksum   string    `gorm:"size:128;index" json:"checksum"`
	UploadedBy string    `gorm:"size:120" json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExamDate announces an upcoming examination session.
type ExamDate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:exam_key;size:64;uniqueIndex;not null" json:"key"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	ExamDate  time.Time `gorm:"not null" json:"exam_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
