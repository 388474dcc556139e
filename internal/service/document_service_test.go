package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type storageStub struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newStorageStub() *storageStub {
	return &storageStub{objects: map[string][]byte{}}
}

func (s *storageStub) Upload(_ context.Context, key string, reader io.Reader, _ string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.objects[key] = payload
	return "https://cdn.example.com/" + key, nil
}

func (s *storageStub) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func newTestDocumentService(t *testing.T, storage FileStorage, maxMB int, events EventPublisher) (DocumentService, repository.DocumentRepository) {
	t.Helper()
	repo := repository.NewDocumentRepository(setupServiceDB(t))
	svc := NewDocumentService(storage, repo, nil, DocumentServiceConfig{Driver: "local", MaxSizeMB: maxMB, Events: events}, testLogger())
	return svc, repo
}

func TestDocumentServiceRejectsSize(t *testing.T) {
	svc, _ := newTestDocumentService(t, newStorageStub(), 1, nil)

	file := buildFileHeader(t, "file.pdf", append(samplePDF, bytes.Repeat([]byte("a"), 2*1024*1024)...))

	_, err := svc.Upload(context.Background(), file, dto.DocumentUploadRequest{Title: "Big"}, "admin")
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestDocumentServiceTypeValidation(t *testing.T) {
	storage := newStorageStub()
	svc, _ := newTestDocumentService(t, storage, 5, nil)

	file := buildFileHeader(t, "file.pdf", []byte("plain text pretending"))
	_, err := svc.Upload(context.Background(), file, dto.DocumentUploadRequest{Title: "Fake"}, "admin")
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Empty(t, storage.objects)

	_, err = svc.Upload(context.Background(), nil, dto.DocumentUploadRequest{Title: "Nothing"}, "admin")
	require.ErrorIs(t, err, ErrUploadMissingFile)

	_, err = svc.Upload(context.Background(), buildFileHeader(t, "a.pdf", samplePDF), dto.DocumentUploadRequest{Title: "<i></i>"}, "admin")
	require.True(t, isValidation(err))
}

func TestDocumentServiceReplacesSlot(t *testing.T) {
	storage := newStorageStub()
	events := &recordingPublisher{}
	svc, _ := newTestDocumentService(t, storage, 5, events)
	ctx := context.Background()

	first, err := svc.Upload(ctx, buildFileHeader(t, "../../Emploi du Temps S1.PDF", samplePDF), dto.DocumentUploadRequest{Title: "Timetable", Slot: "Timetable-S1"}, "admin")
	require.NoError(t, err)
	require.Equal(t, "emploi-du-temps-s1.pdf", first.FileName)
	require.Equal(t, "timetable-s1", first.Slot)
	require.Equal(t, "application/pdf", first.MimeType)
	require.Len(t, first.Checksum, 64)
	require.Len(t, storage.objects, 1)

	second, err := svc.Upload(ctx, buildFileHeader(t, "timetable-v2.pdf", samplePDF), dto.DocumentUploadRequest{Title: "Timetable v2", Slot: "timetable-s1"}, "admin")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Timetable v2", second.Title)
	require.Len(t, storage.objects, 1)
	require.Len(t, storage.deleted, 1)

	list, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{EventDocumentUploaded, EventDocumentUploaded}, events.names())
}

func TestDocumentServiceDelete(t *testing.T) {
	storage := newStorageStub()
	svc, _ := newTestDocumentService(t, storage, 5, nil)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, buildFileHeader(t, "results.pdf", samplePDF), dto.DocumentUploadRequest{Title: "Results"}, "admin")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	require.Empty(t, storage.objects)
	require.ErrorIs(t, svc.Delete(ctx, doc.ID), ErrDocumentNotFound)
}

func TestDocumentServiceStorageFailure(t *testing.T) {
	storage := newStorageStub()
	storage.uploadErr = errors.New("bucket unavailable")
	svc, repo := newTestDocumentService(t, storage, 5, nil)

	_, err := svc.Upload(context.Background(), buildFileHeader(t, "x.pdf", samplePDF), dto.DocumentUploadRequest{Title: "X"}, "admin")
	require.Error(t, err)

	items, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "report.pdf", sanitizeFileName("C:\\Users\\me\\Report.pdf"))
	require.Equal(t, "passwd.pdf", sanitizeFileName("../../etc/passwd"))
	require.Equal(t, "notes-s5.pdf", sanitizeFileName("notes s5.txt"))
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
