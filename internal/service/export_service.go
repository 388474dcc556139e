package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/observability"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

// Transcript formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetGrades  = "Notes"
	sheetSummary = "Synthèse"
)

// ErrUnsupportedFormat indicates an unknown transcript format.
var ErrUnsupportedFormat = errors.New("unsupported transcript format")

// TranscriptFile is a rendered transcript ready to be sent to the client.
type TranscriptFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders roster transcripts.
type ExportService interface {
	Export(ctx context.Context, rosterID uint, format, policyOverride string) (TranscriptFile, error)
}

type exportService struct {
	repo   repository.RosterRepository
	engine *grading.Engine
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewExportService constructs the transcript export service.
func NewExportService(repo repository.RosterRepository, engine *grading.Engine, logger zerolog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		engine: engine,
		logger: logger.With().Str("component", "export_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gradebook-api/internal/service/export"),
	}
}

func (s *exportService) Export(ctx context.Context, rosterID uint, format, policyOverride string) (TranscriptFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatPDF
	}

	ctx, span := s.tracer.Start(ctx, "transcript.export")
	defer span.End()
	span.SetAttributes(
		attribute.Int("roster.id", int(rosterID)),
		attribute.String("transcript.format", format),
	)

	if format != FormatPDF && format != FormatXLSX {
		observability.TranscriptExports().WithLabelValues("unknown", "rejected").Inc()
		return TranscriptFile{}, ErrUnsupportedFormat
	}

	roster, err := s.repo.GetByID(ctx, rosterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TranscriptFile{}, ErrRosterNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return TranscriptFile{}, err
	}

	policy, err := resolvePolicy(s.engine, policyOverride, roster.Policy)
	if err != nil {
		return TranscriptFile{}, err
	}
	result := s.engine.EvaluateWith(dto.GradingRoster(roster), policy)

	var file TranscriptFile
	switch format {
	case FormatXLSX:
		file, err = renderWorkbook(roster, result)
	default:
		file, err = renderPDF(roster, result)
	}
	if err != nil {
		observability.TranscriptExports().WithLabelValues(format, "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		s.logger.Error().Err(err).Uint("roster_id", rosterID).Str("format", format).Msg("failed to render transcript")
		return TranscriptFile{}, err
	}

	observability.TranscriptExports().WithLabelValues(format, "ok").Inc()
	span.SetAttributes(attribute.Int("transcript.bytes", len(file.Content)))
	return file, nil
}

func transcriptName(roster models.Roster, ext string) string {
	return fmt.Sprintf("releve_notes_%d.%s", roster.ID, ext)
}

func subjectStatusLabel(status grading.SubjectStatus) string {
	if status == grading.SubjectValidated {
		return "VALIDÉ"
	}
	return "RATTRAPAGE"
}

func moduleStatusLabel(status grading.ModuleStatus) string {
	if status == grading.ModuleValidated {
		return "MODULE VALIDÉ"
	}
	return "MODULE NON VALIDÉ"
}

func formatScore(score grading.Score) string {
	if !score.Present {
		return "-"
	}
	return fmt.Sprintf("%g", score.Float())
}

var transcriptColumns = []struct {
	title string
	width float64
}{
	{"Matière", 60},
	{"Examen", 20},
	{"Devoir", 20},
	{"Coef", 20},
	{"Moyenne", 25},
	{"Statut", 25},
}

func renderPDF(roster models.Roster, result grading.Result) (TranscriptFile, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr("Relevé de Notes"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	if roster.StudentName != "" {
		pdf.CellFormat(0, 8, tr("Nom et Prénom: "+roster.StudentName), "", 1, "L", false, 0, "")
	}
	if roster.StudentNumber != "" {
		pdf.CellFormat(0, 8, tr("N° d'Inscription: "+roster.StudentNumber), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	for _, module := range result.Modules {
		// keep a module header with at least its column titles
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(33, 150, 243)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(170, 10, tr("Module: "+module.Name), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)

		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		for _, column := range transcriptColumns {
			pdf.CellFormat(column.width, 8, tr(column.title), "", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 10)
		for i, subject := range module.Subjects {
			pdf.SetFillColor(249, 249, 249)
			fill := i%2 == 0
			cells := []string{
				subject.Name,
				formatScore(subject.Exam),
				formatScore(subject.Devoir),
				formatScore(subject.Coefficient),
				fmt.Sprintf("%.2f", subject.Average),
			}
			for j, value := range cells {
				pdf.CellFormat(transcriptColumns[j].width, 8, tr(value), "", 0, "L", fill, 0, "")
			}
			if subject.Status == grading.SubjectValidated {
				pdf.SetTextColor(46, 125, 50)
			} else {
				pdf.SetTextColor(198, 40, 40)
			}
			pdf.CellFormat(transcriptColumns[5].width, 8, tr(subjectStatusLabel(subject.Status)), "", 1, "L", fill, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}

		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(100, 8, tr(fmt.Sprintf("Moyenne du Module: %.2f", module.Average)), "", 0, "L", true, 0, "")
		if module.Passed {
			pdf.SetTextColor(46, 125, 50)
		} else {
			pdf.SetTextColor(198, 40, 40)
		}
		pdf.CellFormat(70, 8, tr(moduleStatusLabel(module.Status)), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(8)
	}

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Moyenne Générale: %.2f / 20", result.OverallAverage)), "T", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return TranscriptFile{}, err
	}

	return TranscriptFile{
		FileName:    transcriptName(roster, FormatPDF),
		ContentType: contentTypePDF,
		Content:     buf.Bytes(),
	}, nil
}

func scoreCell(score grading.Score) interface{} {
	if !score.Present {
		return ""
	}
	return score.Float()
}

// renderWorkbook writes the grades sheet in the import layout, followed by a summary sheet.
func renderWorkbook(roster models.Roster, result grading.Result) (TranscriptFile, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetGrades); err != nil {
		return TranscriptFile{}, err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return TranscriptFile{}, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return TranscriptFile{}, err
	}

	header := []interface{}{"module", "subject", "exam", "devoir", "coefficient", "average", "status", "module_no"}
	if err := f.SetSheetRow(sheetGrades, "A1", &header); err != nil {
		return TranscriptFile{}, err
	}
	if err := f.SetCellStyle(sheetGrades, "A1", "H1", bold); err != nil {
		return TranscriptFile{}, err
	}

	row := 2
	for i, module := range result.Modules {
		if len(module.Subjects) == 0 {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []interface{}{module.Name, "", "", "", "", "", "", i + 1}
			if err := f.SetSheetRow(sheetGrades, cell, &values); err != nil {
				return TranscriptFile{}, err
			}
			row++
			continue
		}
		for _, subject := range module.Subjects {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []interface{}{
				module.Name,
				subject.Name,
				scoreCell(subject.Exam),
				scoreCell(subject.Devoir),
				scoreCell(subject.Coefficient),
				subject.Average,
				subjectStatusLabel(subject.Status),
				i + 1,
			}
			if err := f.SetSheetRow(sheetGrades, cell, &values); err != nil {
				return TranscriptFile{}, err
			}
			row++
		}
	}

	summary := [][]interface{}{
		{"Nom et Prénom", roster.StudentName},
		{"N° d'Inscription", roster.StudentNumber},
		{"Politique", string(result.Policy)},
		{},
		{"Module", "Moyenne", "Crédits", "Statut"},
	}
	for _, module := range result.Modules {
		summary = append(summary, []interface{}{module.Name, module.Average, module.Credits, moduleStatusLabel(module.Status)})
	}
	summary = append(summary, []interface{}{}, []interface{}{"Moyenne Générale", result.OverallAverage, result.TotalCredits})

	for i := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &summary[i]); err != nil {
			return TranscriptFile{}, err
		}
	}
	if err := f.SetCellStyle(sheetSummary, "A5", "D5", bold); err != nil {
		return TranscriptFile{}, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return TranscriptFile{}, err
	}

	return TranscriptFile{
		FileName:    transcriptName(roster, FormatXLSX),
		ContentType: contentTypeXLSX,
		Content:     buf.Bytes(),
	}, nil
}
