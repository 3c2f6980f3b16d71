package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/tabular"
)

var numericColumns = []string{models.ColCredits, models.ColContactHours, models.ColYear, models.ColSemester}

// CatalogRepository loads program course tables from the remote store.
type CatalogRepository struct {
	reader  tabular.Reader
	sources map[models.Program]tabular.TableRef
	now     func() time.Time
}

// NewCatalogRepository wires a reader to the per-program course tables.
func NewCatalogRepository(reader tabular.Reader, sources map[models.Program]tabular.TableRef) *CatalogRepository {
	return &CatalogRepository{reader: reader, sources: sources, now: time.Now}
}

// Ref returns the table backing program.
func (r *CatalogRepository) Ref(program models.Program) (tabular.TableRef, bool) {
	ref, ok := r.sources[program]
	return ref, ok
}

// Load reads the full course table of program. On a connection failure it
// returns an empty table together with an error wrapping tabular.ErrConnection.
func (r *CatalogRepository) Load(ctx context.Context, program models.Program) (*models.CourseTable, error) {
	ref, ok := r.sources[program]
	if !ok {
		return models.NewCourseTable(program, nil, nil, r.now()), fmt.Errorf("no course table configured for %s", program)
	}
	snap, err := r.reader.LoadTable(ctx, ref)
	if err != nil {
		return models.NewCourseTable(program, nil, nil, r.now()), err
	}
	return BuildCourseTable(program, snap, r.now()), nil
}

// BuildCourseTable maps a snapshot onto courses. Numeric columns are coerced
// per column: one non-integer cell keeps the whole column as text, and the
// column is listed in TextColumns. Rows without a code are skipped.
func BuildCourseTable(program models.Program, snap *tabular.Snapshot, loadedAt time.Time) *models.CourseTable {
	headers := resolveHeaders(snap)
	textColumns := make([]string, 0)
	numeric := make(map[string]bool, len(numericColumns))
	for _, col := range numericColumns {
		h, ok := headers[col]
		if !ok {
			continue
		}
		if columnIsInteger(snap, h) {
			numeric[col] = true
		} else {
			textColumns = append(textColumns, col)
		}
	}

	cell := func(row tabular.Row, col string) string {
		h, ok := headers[col]
		if !ok {
			return ""
		}
		return row.Get(h)
	}
	flex := func(row tabular.Row, col string) models.FlexInt {
		raw := cell(row, col)
		if raw == "" {
			return models.FlexInt{}
		}
		if numeric[col] {
			n, _ := models.ParseInt(raw)
			return models.IntValue(n)
		}
		return models.TextValue(raw)
	}

	courses := make([]models.Course, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		code := cell(row, models.ColCode)
		if code == "" {
			continue
		}
		status, _ := models.ParseCourseStatus(cell(row, models.ColStatus))
		courses = append(courses, models.Course{
			Program:          program,
			Code:             code,
			TitleES:          cell(row, models.ColTitleES),
			TitleEN:          cell(row, models.ColTitleEN),
			Status:           status,
			Credits:          flex(row, models.ColCredits),
			ContactHours:     flex(row, models.ColContactHours),
			Year:             flex(row, models.ColYear),
			Semester:         flex(row, models.ColSemester),
			LastRevisionDate: cell(row, models.ColRevisionDate),
			Description:      cell(row, models.ColDescription),
			Comments:         cell(row, models.ColComments),
			LastModifiedBy:   cell(row, models.ColLastModifiedBy),
			LastModifiedAt:   cell(row, models.ColLastModifiedAt),
			Row:              row.Number,
		})
	}
	return models.NewCourseTable(program, courses, textColumns, loadedAt)
}

// resolveHeaders maps canonical column names to the headers present in the sheet.
func resolveHeaders(snap *tabular.Snapshot) map[string]string {
	canonical := []string{
		models.ColCode, models.ColStatus, models.ColTitleES, models.ColTitleEN,
		models.ColCredits, models.ColContactHours, models.ColYear, models.ColSemester,
		models.ColRevisionDate, models.ColDescription, models.ColComments,
		models.ColLastModifiedBy, models.ColLastModifiedAt,
	}
	out := make(map[string]string, len(canonical))
	for _, col := range canonical {
		if _, h, ok := snap.Column(col); ok {
			out[col] = h
		}
	}
	return out
}

func columnIsInteger(snap *tabular.Snapshot, header string) bool {
	for _, row := range snap.Rows {
		raw := row.Get(header)
		if raw == "" {
			continue
		}
		if _, err := models.ParseInt(raw); err != nil {
			return false
		}
	}
	return true
}
