package dto

import (
	"time"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// DocumentUploadRequest carries the form fields of a document upload.
type DocumentUploadRequest struct {
	Title string `validate:"required,max=255"`
	Slot  string `validate:"omitempty,max=64"`
}

// DocumentResponse describes a published document.
type DocumentResponse struct {
	ID        uint      `json:"id"`
	Slot      string    `json:"slot,omitempty"`
	Title     string    `json:"title"`
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocumentResponse maps a document model.
func NewDocumentResponse(document models.Document) DocumentResponse {
	return DocumentResponse{
		ID:        document.ID,
		Slot:      document.Slot,
		Title:     document.Title,
		FileName:  document.FileName,
		URL:       document.URL,
		MimeType:  document.MimeType,
		SizeBytes: document.SizeBytes,
		Checksum:  document.Checksum,
		UpdatedAt: document.UpdatedAt,
	}
}

// ExamDateRequest sets the date of an exam session.
type ExamDateRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	ExamDate string `json:"exam_date" validate:"required"`
}

// ExamDateResponse describes an exam session with the countdown from today.
type ExamDateResponse struct {
	Key           string    `json:"key"`
	Title         string    `json:"title"`
	ExamDate      time.Time `json:"exam_date"`
	DaysRemaining int       `json:"days_remaining"`
	Passed        bool      `json:"passed"`
}

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=120"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse returns the issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
