package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/observability"
)

var (
	// ErrImportInvalidFile indicates the upload is not a readable XLSX workbook.
	ErrImportInvalidFile = errors.New("spreadsheet could not be read")
	// ErrImportMissingColumn indicates a required header column is absent.
	ErrImportMissingColumn = errors.New("spreadsheet is missing a required column")
	// ErrImportEmpty indicates the sheet has a header but no subject rows.
	ErrImportEmpty = errors.New("spreadsheet contains no subjects")
)

var importColumnAliases = map[string][]string{
	"module":      {"module"},
	"subject":     {"subject", "matière", "matiere"},
	"exam":        {"exam", "examen"},
	"devoir":      {"devoir"},
	"coefficient": {"coefficient", "coef"},
	"module_no":   {"module_no", "module no", "n° module"},
}

// ImportOptions carries the roster header fields that are not part of the sheet.
type ImportOptions struct {
	StudentName   string
	StudentNumber string
	Policy        string
}

// ImportService creates rosters from spreadsheets.
type ImportService interface {
	Import(ctx context.Context, reader io.Reader, opts ImportOptions) (dto.RosterResponse, error)
}

type importService struct {
	rosters RosterService
	logger  zerolog.Logger
}

// NewImportService constructs the spreadsheet import service.
func NewImportService(rosters RosterService, logger zerolog.Logger) ImportService {
	return &importService{
		rosters: rosters,
		logger:  logger.With().Str("component", "import_service").Logger(),
	}
}

func (s *importService) Import(ctx context.Context, reader io.Reader, opts ImportOptions) (dto.RosterResponse, error) {
	modules, err := readGradeSheet(reader)
	if err != nil {
		observability.TranscriptImports().WithLabelValues("rejected").Inc()
		return dto.RosterResponse{}, err
	}

	roster, err := s.rosters.Create(ctx, dto.RosterCreateRequest{
		StudentName:   opts.StudentName,
		StudentNumber: opts.StudentNumber,
		Policy:        opts.Policy,
		Modules:       modules,
	})
	if err != nil {
		observability.TranscriptImports().WithLabelValues("rejected").Inc()
		return dto.RosterResponse{}, err
	}

	observability.TranscriptImports().WithLabelValues("ok").Inc()
	s.logger.Info().Uint("roster_id", roster.ID).Int("modules", len(modules)).Msg("roster imported")
	return roster, nil
}

// readGradeSheet parses the first sheet. Exported workbooks carry a module_no column and rows are
// grouped on it, so duplicate or blank module names survive a round trip. Hand-written sheets
// without it are grouped by module name, and rows with an empty module cell belong to the module above.
func readGradeSheet(reader io.Reader) ([]dto.ModuleRequest, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalidFile, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrImportInvalidFile
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalidFile, err)
	}

	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrImportEmpty
	}

	columns, err := mapImportColumns(rows[headerIdx])
	if err != nil {
		return nil, err
	}

	var (
		modules  []dto.ModuleRequest
		index    = map[string]int{}
		current  string
		subjects int
	)
	moduleFor := func(key, name string) int {
		pos, ok := index[key]
		if !ok {
			pos = len(modules)
			index[key] = pos
			modules = append(modules, dto.ModuleRequest{Name: name})
		}
		return pos
	}

	for _, row := range rows[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		subject := dto.SubjectRequest{
			Name:        cell("subject"),
			Exam:        grading.ParseScore(cell("exam")),
			Devoir:      grading.ParseScore(cell("devoir")),
			Coefficient: grading.ParseScore(cell("coefficient")),
		}
		hasSubject := subject.Name != "" || subject.Exam.Present || subject.Devoir.Present || subject.Coefficient.Present

		var pos int
		if ordinal := cell("module_no"); ordinal != "" {
			// a row without subject cells still declares an empty module
			pos = moduleFor("#"+ordinal, cell("module"))
		} else {
			if name := cell("module"); name != "" {
				current = name
			}
			if !hasSubject {
				continue
			}
			pos = moduleFor("="+strings.ToLower(current), current)
		}
		if !hasSubject {
			continue
		}
		modules[pos].Subjects = append(modules[pos].Subjects, subject)
		subjects++
	}

	if subjects == 0 {
		return nil, ErrImportEmpty
	}
	return modules, nil
}

func mapImportColumns(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, title := range header {
		positions[strings.ToLower(strings.TrimSpace(title))] = i
	}

	columns := make(map[string]int, len(importColumnAliases))
	for column, aliases := range importColumnAliases {
		for _, alias := range aliases {
			if idx, ok := positions[alias]; ok {
				columns[column] = idx
				break
			}
		}
	}

	for _, required := range []string{"module", "subject", "exam", "devoir", "coefficient"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrImportMissingColumn, required)
		}
	}
	return columns, nil
}

func blankRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
