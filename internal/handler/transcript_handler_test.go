package handler_test

import (
	"bytes"
	"context"
	"io"
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

type mockExportService struct {
	format string
	policy string
	err    error
}

func (m *mockExportService) Export(_ context.Context, rosterID uint, format, policy string) (service.TranscriptFile, error) {
	m.format = format
	m.policy = policy
	if m.err != nil {
		return service.TranscriptFile{}, m.err
	}
	return service.TranscriptFile{FileName: "releve_notes_3.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}, nil
}

type mockImportService struct {
	opts    service.ImportOptions
	content []byte
	err     error
}

func (m *mockImportService) Import(_ context.Context, reader io.Reader, opts service.ImportOptions) (dto.RosterResponse, error) {
	m.opts = opts
	m.content, _ = io.ReadAll(reader)
	if m.err != nil {
		return dto.RosterResponse{}, m.err
	}
	return dto.RosterResponse{RosterSummary: dto.RosterSummary{ID: 8, StudentName: opts.StudentName}}, nil
}

func newTranscriptApp(exports service.ExportService, imports service.ImportService) *fiber.App {
	app := fiber.New()
	handler.NewTranscriptHandler(exports, imports, nopLogger).Register(app.Group("/api/v2/rosters"))
	return app
}

func TestTranscriptHandlerExport(t *testing.T) {
	exports := &mockExportService{}
	app := newTranscriptApp(exports, &mockImportService{})

	resp := doJSON(t, app, http.MethodGet, "/api/v2/rosters/3/export?format=pdf&policy=simple", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "releve_notes_3.pdf")
	require.Equal(t, "simple", exports.policy)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.3", string(body))

	cases := map[error]int{
		service.ErrUnsupportedFormat: fiber.StatusBadRequest,
		service.ErrRosterNotFound:    fiber.StatusNotFound,
	}
	for svcErr, status := range cases {
		app := newTranscriptApp(&mockExportService{err: svcErr}, &mockImportService{})
		resp := doJSON(t, app, http.MethodGet, "/api/v2/rosters/3/export?format=docx", nil)
		require.Equal(t, status, resp.StatusCode, svcErr.Error())
	}
}

func TestTranscriptHandlerImport(t *testing.T) {
	imports := &mockImportService{}
	app := newTranscriptApp(&mockExportService{}, imports)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("student_name", "Amina"))
	require.NoError(t, writer.WriteField("policy", "simple"))
	part, err := writer.CreateFormFile("file", "notes.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("sheet-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/rosters/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "Amina", imports.opts.StudentName)
	require.Equal(t, "simple", imports.opts.Policy)
	require.Equal(t, "sheet-bytes", string(imports.content))

	rejected := newTranscriptApp(&mockExportService{}, &mockImportService{err: service.ErrImportMissingColumn})
	body.Reset()
	writer = multipart.NewWriter(body)
	part, err = writer.CreateFormFile("file", "bad.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	req = httptest.NewRequest(http.MethodPost, "/api/v2/rosters/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err = rejected.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
