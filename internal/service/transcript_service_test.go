package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

type transcriptFixture struct {
	rosters  RosterService
	exports  ExportService
	imports  ImportService
	rosterID uint
}

func newTranscriptFixture(t *testing.T) transcriptFixture {
	t.Helper()
	db := setupServiceDB(t)
	repo := repository.NewRosterRepository(db)
	engine := testEngine(t)
	rosters := NewRosterService(repo, repository.NewEvaluationRepository(db), engine, nil, RosterServiceConfig{}, testLogger())

	created, err := rosters.Create(context.Background(), sampleCreateRequest())
	require.NoError(t, err)

	return transcriptFixture{
		rosters:  rosters,
		exports:  NewExportService(repo, engine, testLogger()),
		imports:  NewImportService(rosters, testLogger()),
		rosterID: created.ID,
	}
}

func TestExportServicePDF(t *testing.T) {
	fx := newTranscriptFixture(t)

	file, err := fx.exports.Export(context.Background(), fx.rosterID, "", "")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", file.ContentType)
	require.Contains(t, file.FileName, ".pdf")
	require.True(t, bytes.HasPrefix(file.Content, []byte("%PDF-")))
}

func TestExportServiceRejectsUnknownInput(t *testing.T) {
	fx := newTranscriptFixture(t)
	ctx := context.Background()

	_, err := fx.exports.Export(ctx, fx.rosterID, "docx", "")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = fx.exports.Export(ctx, fx.rosterID+100, FormatPDF, "")
	require.ErrorIs(t, err, ErrRosterNotFound)

	_, err = fx.exports.Export(ctx, fx.rosterID, FormatPDF, "lenient")
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestExportWorkbookRoundTripsThroughImport(t *testing.T) {
	fx := newTranscriptFixture(t)
	ctx := context.Background()

	file, err := fx.exports.Export(ctx, fx.rosterID, "XLSX", "")
	require.NoError(t, err)
	require.Equal(t, contentTypeXLSX, file.ContentType)

	book, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	require.Equal(t, []string{sheetGrades, sheetSummary}, book.GetSheetList())
	require.NoError(t, book.Close())

	imported, err := fx.imports.Import(ctx, bytes.NewReader(file.Content), ImportOptions{StudentName: "Copy", StudentNumber: "S-002"})
	require.NoError(t, err)
	require.NotEqual(t, fx.rosterID, imported.ID)
	require.Equal(t, "Copy", imported.StudentName)
	require.Len(t, imported.Modules, 2)
	require.Len(t, imported.Modules[0].Subjects, 2)
	require.Equal(t, 20.0, imported.Modules[0].Subjects[1].Exam.Float())
	require.Equal(t, 0.0, imported.Modules[0].Subjects[1].Devoir.Float())

	original, err := fx.rosters.Evaluate(ctx, fx.rosterID, "")
	require.NoError(t, err)
	copied, err := fx.rosters.Evaluate(ctx, imported.ID, "")
	require.NoError(t, err)
	require.Equal(t, original.Result.OverallAverage, copied.Result.OverallAverage)
}

func TestExportWorkbookKeepsDuplicateAndUnnamedModules(t *testing.T) {
	fx := newTranscriptFixture(t)
	ctx := context.Background()

	created, err := fx.rosters.Create(ctx, dto.RosterCreateRequest{
		StudentName: "Twin Modules",
		Modules: []dto.ModuleRequest{
			{Name: "Maths", Subjects: []dto.SubjectRequest{{Name: "Algebra", Exam: score(12), Devoir: score(12), Coefficient: score(1)}}},
			{Name: "Maths", Subjects: []dto.SubjectRequest{{Name: "Geometry", Exam: score(8), Devoir: score(8), Coefficient: score(1)}}},
			{Name: "", Subjects: []dto.SubjectRequest{{Name: "Drawing", Exam: score(4), Devoir: score(4), Coefficient: score(1)}}},
			{Name: "Sport"},
		},
	})
	require.NoError(t, err)

	file, err := fx.exports.Export(ctx, created.ID, FormatXLSX, "")
	require.NoError(t, err)

	imported, err := fx.imports.Import(ctx, bytes.NewReader(file.Content), ImportOptions{StudentName: "Twin Copy"})
	require.NoError(t, err)
	require.Len(t, imported.Modules, 4)
	require.Equal(t, []string{"Maths", "Maths", "", "Sport"}, []string{
		imported.Modules[0].Name, imported.Modules[1].Name, imported.Modules[2].Name, imported.Modules[3].Name,
	})
	require.Len(t, imported.Modules[0].Subjects, 1)
	require.Len(t, imported.Modules[1].Subjects, 1)
	require.Len(t, imported.Modules[2].Subjects, 1)
	require.Empty(t, imported.Modules[3].Subjects)

	original, err := fx.rosters.Evaluate(ctx, created.ID, "")
	require.NoError(t, err)
	copied, err := fx.rosters.Evaluate(ctx, imported.ID, "")
	require.NoError(t, err)
	require.Len(t, copied.Result.Modules, len(original.Result.Modules))
	for i := range original.Result.Modules {
		require.Equal(t, original.Result.Modules[i].Average, copied.Result.Modules[i].Average)
		require.Equal(t, original.Result.Modules[i].Status, copied.Result.Modules[i].Status)
	}
	require.Equal(t, grading.ModuleValidated, copied.Result.Modules[0].Status)
	require.Equal(t, grading.ModuleNotValidated, copied.Result.Modules[1].Status)
	require.Equal(t, original.Result.OverallAverage, copied.Result.OverallAverage)
}

func TestImportServiceReadsLooseSheets(t *testing.T) {
	fx := newTranscriptFixture(t)

	book := excelize.NewFile()
	rows := [][]interface{}{
		{},
		{"Module", "Matière", "Examen", "Devoir", "Coef"},
		{"Algorithmique", "Structures", "12,5", "14", "3"},
		{"", "Programmation", "abc", "", "2"},
		{},
		{"Réseaux", "TCP/IP", 9, 11, 2},
		{"algorithmique", "Complexité", 15, 15, 1},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	roster, err := fx.imports.Import(context.Background(), buf, ImportOptions{StudentName: "Imported"})
	require.NoError(t, err)
	require.Len(t, roster.Modules, 2)

	algo := roster.Modules[0]
	require.Equal(t, "Algorithmique", algo.Name)
	require.Len(t, algo.Subjects, 3)
	require.Equal(t, 12.5, algo.Subjects[0].Exam.Float())
	require.True(t, algo.Subjects[1].Exam.Present)
	require.Equal(t, 0.0, algo.Subjects[1].Exam.Float())
	require.False(t, algo.Subjects[1].Devoir.Present)
	require.Equal(t, "Réseaux", roster.Modules[1].Name)
}

func TestImportServiceRejectsBadSheets(t *testing.T) {
	fx := newTranscriptFixture(t)
	ctx := context.Background()

	_, err := fx.imports.Import(ctx, bytes.NewReader([]byte("not a workbook")), ImportOptions{})
	require.ErrorIs(t, err, ErrImportInvalidFile)

	book := excelize.NewFile()
	header := []interface{}{"module", "subject", "exam"}
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &header))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	_, err = fx.imports.Import(ctx, buf, ImportOptions{})
	require.ErrorIs(t, err, ErrImportMissingColumn)

	empty := excelize.NewFile()
	header = []interface{}{"module", "subject", "exam", "devoir", "coefficient"}
	require.NoError(t, empty.SetSheetRow("Sheet1", "A1", &header))
	buf, err = empty.WriteToBuffer()
	require.NoError(t, err)
	_, err = fx.imports.Import(ctx, buf, ImportOptions{})
	require.ErrorIs(t, err, ErrImportEmpty)
}
