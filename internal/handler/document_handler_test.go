package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/service"
)

type mockDocumentService struct {
	lastReq   dto.DocumentUploadRequest
	lastActor string
	lastSlot  string
	deleted   uint
	err       error
}

func (m *mockDocumentService) Upload(_ context.Context, file *multipart.FileHeader, req dto.DocumentUploadRequest, actor string) (dto.DocumentResponse, error) {
	m.lastReq = req
	m.lastActor = actor
	if m.err != nil {
		return dto.DocumentResponse{}, m.err
	}
	return dto.DocumentResponse{ID: 5, Title: req.Title, Slot: req.Slot, FileName: file.Filename}, nil
}

func (m *mockDocumentService) List(_ context.Context, slot string) ([]dto.DocumentResponse, error) {
	m.lastSlot = slot
	return []dto.DocumentResponse{{ID: 5, Title: "Emploi du temps"}}, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, id uint) error {
	m.deleted = id
	return m.err
}

func newDocumentApp(svc service.DocumentService) *fiber.App {
	app := fiber.New()
	h := handler.NewDocumentHandler(svc, nopLogger)
	h.RegisterPublic(app.Group("/api/v2/documents"))
	h.RegisterAdmin(app.Group("/api/v2/admin/documents", func(c *fiber.Ctx) error {
		c.Locals("user_subject", "admin")
		c.Locals("user_role", "admin")
		return c.Next()
	}))
	return app
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/admin/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestDocumentHandlerUpload(t *testing.T) {
	svc := &mockDocumentService{}
	app := newDocumentApp(svc)

	req := multipartUpload(t, map[string]string{"title": "Emploi du temps", "slot": "timetable-s1"}, "edt.pdf", []byte("%PDF-1.4"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "admin", svc.lastActor)
	require.Equal(t, dto.DocumentUploadRequest{Title: "Emploi du temps", Slot: "timetable-s1"}, svc.lastReq)

	env := readEnvelope(t, resp)
	require.True(t, env.Success)
}

func TestDocumentHandlerUploadErrors(t *testing.T) {
	app := newDocumentApp(&mockDocumentService{})
	resp, err := app.Test(multipartUpload(t, map[string]string{"title": "x"}, "", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	cases := map[error]int{
		service.ErrUploadTooLarge:       fiber.StatusRequestEntityTooLarge,
		service.ErrUploadTypeNotAllowed: fiber.StatusBadRequest,
	}
	for svcErr, status := range cases {
		app := newDocumentApp(&mockDocumentService{err: svcErr})
		resp, err := app.Test(multipartUpload(t, map[string]string{"title": "x"}, "a.pdf", []byte("data")), -1)
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode, svcErr.Error())
	}
}

func TestDocumentHandlerListAndDelete(t *testing.T) {
	svc := &mockDocumentService{}
	app := newDocumentApp(svc)

	resp := doJSON(t, app, http.MethodGet, "/api/v2/documents?slot=timetable-s1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "timetable-s1", svc.lastSlot)

	resp = doJSON(t, app, http.MethodDelete, "/api/v2/admin/documents/5", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(5), svc.deleted)

	missing := newDocumentApp(&mockDocumentService{err: service.ErrDocumentNotFound})
	resp = doJSON(t, missing, http.MethodDelete, "/api/v2/admin/documents/5", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
