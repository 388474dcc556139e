package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/observability"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

const pdfMimeType = "application/pdf"

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the file is not a PDF.
	ErrUploadTypeNotAllowed = errors.New("only PDF documents are accepted")
	// ErrUploadMissingFile indicates the request carried no file.
	ErrUploadMissingFile = errors.New("file is required")
	// ErrDocumentNotFound indicates the document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
)

// FileStorage abstracts blob destinations. Delete must succeed for blobs that are already gone.
type FileStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// DocumentService publishes PDF documents managed by administrators.
type DocumentService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, req dto.DocumentUploadRequest, actor string) (dto.DocumentResponse, error)
	List(ctx context.Context, slot string) ([]dto.DocumentResponse, error)
	Delete(ctx context.Context, id uint) error
}

// DocumentServiceConfig carries the document service settings.
type DocumentServiceConfig struct {
	Driver    string
	MaxSizeMB int
	Events    EventPublisher
}

type documentService struct {
	storage   FileStorage
	repo      repository.DocumentRepository
	validator *validator.Validate
	events    EventPublisher
	driver    string
	logger    zerolog.Logger
	maxSize   int64
	tracer    trace.Tracer
	newKey    func(name string) string
}

type documentEvent struct {
	ID    uint   `json:"id"`
	Slot  string `json:"slot,omitempty"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// NewDocumentService constructs a document service.
func NewDocumentService(storage FileStorage, repo repository.DocumentRepository, validate *validator.Validate, cfg DocumentServiceConfig, logger zerolog.Logger) DocumentService {
	maxSizeMB := cfg.MaxSizeMB
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "local"
	}
	return &documentService{
		storage:   storage,
		repo:      repo,
		validator: validate,
		events:    cfg.Events,
		driver:    driver,
		logger:    logger.With().Str("component", "document_service").Logger(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		tracer:    otel.Tracer("github.com/noah-isme/gradebook-api/internal/service/document"),
		newKey: func(name string) string {
			return uuid.NewString() + "-" + name
		},
	}
}

func (s *documentService) Upload(ctx context.Context, file *multipart.FileHeader, req dto.DocumentUploadRequest, actor string) (dto.DocumentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "document.upload")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("upload.max_bytes", s.maxSize),
		attribute.String("storage.driver", s.driver),
	)

	start := time.Now()
	defer func() {
		observability.DocumentUploadLatency().Observe(time.Since(start).Seconds())
	}()

	req.Title = sanitizeText(req.Title)
	req.Slot = strings.ToLower(sanitizeText(req.Slot))
	if err := s.validator.Struct(req); err != nil {
		observability.DocumentRejected().WithLabelValues("validation").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.DocumentResponse{}, err
	}

	if file == nil {
		observability.DocumentRejected().WithLabelValues("missing").Inc()
		span.RecordError(ErrUploadMissingFile)
		span.SetStatus(codes.Error, "validation failed")
		return dto.DocumentResponse{}, ErrUploadMissingFile
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		observability.DocumentRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.DocumentResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.DocumentResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.DocumentResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.DocumentRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.DocumentResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !detected.Is(pdfMimeType) {
		observability.DocumentRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.DocumentResponse{}, ErrUploadTypeNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	fileName := sanitizeFileName(file.Filename)
	key := s.newKey(fileName)
	span.SetAttributes(
		attribute.String("upload.sanitized_name", fileName),
		attribute.Int64("upload.size_bytes", int64(buf.Len())),
	)

	url, err := s.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), pdfMimeType)
	if err != nil {
		observability.DocumentRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.DocumentResponse{}, err
	}

	document := models.Document{}
	var previousKey string
	if req.Slot != "" {
		existing, err := s.repo.FindBySlot(ctx, req.Slot)
		if err != nil {
			s.discard(ctx, key)
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup failed")
			return dto.DocumentResponse{}, err
		}
		if existing != nil {
			document = *existing
			previousKey = existing.StorageKey
		}
	}

	document.Slot = req.Slot
	document.Title = req.Title
	document.FileName = fileName
	document.StorageKey = key
	document.URL = url
	document.MimeType = pdfMimeType
	document.SizeBytes = int64(buf.Len())
	document.Checksum = hex.EncodeToString(checksum[:])
	document.UploadedBy = actor

	if document.ID == 0 {
		err = s.repo.Create(ctx, &document)
	} else {
		err = s.repo.Update(ctx, &document)
	}
	if err != nil {
		s.discard(ctx, key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.DocumentResponse{}, err
	}

	if previousKey != "" && previousKey != key {
		s.discard(ctx, previousKey)
	}

	observability.DocumentUploads().WithLabelValues(s.driver).Inc()
	publishQuietly(ctx, s.events, s.logger, EventDocumentUploaded, documentEvent{
		ID:    document.ID,
		Slot:  document.Slot,
		Title: document.Title,
		URL:   document.URL,
	})
	s.logger.Info().
		Uint("document_id", document.ID).
		Str("slot", document.Slot).
		Bool("replaced", previousKey != "").
		Msg("document stored")

	span.SetStatus(codes.Ok, "stored")
	return dto.NewDocumentResponse(document), nil
}

func (s *documentService) List(ctx context.Context, slot string) ([]dto.DocumentResponse, error) {
	documents, err := s.repo.List(ctx, strings.ToLower(strings.TrimSpace(slot)))
	if err != nil {
		return nil, err
	}

	responses := make([]dto.DocumentResponse, 0, len(documents))
	for _, document := range documents {
		responses = append(responses, dto.NewDocumentResponse(document))
	}
	return responses, nil
}

func (s *documentService) Delete(ctx context.Context, id uint) error {
	ctx, span := s.tracer.Start(ctx, "document.delete")
	defer span.End()
	span.SetAttributes(attribute.Int("document.id", int(id)))

	document, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return err
	}

	if err := s.storage.Delete(ctx, document.StorageKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return err
	}

	publishQuietly(ctx, s.events, s.logger, EventDocumentDeleted, documentEvent{
		ID:    document.ID,
		Slot:  document.Slot,
		Title: document.Title,
	})
	span.SetStatus(codes.Ok, "deleted")
	return nil
}

func (s *documentService) discard(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to remove blob")
	}
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("document-%d", time.Now().Unix())
	}
	return base + ".pdf"
}
