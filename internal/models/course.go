package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sheet headers of the course table.
const (
	ColCode           = "Codificación"
	ColStatus         = "Estatus"
	ColTitleES        = "TítuloCompletoEspañol"
	ColTitleEN        = "TítuloCompletoInglés"
	ColCredits        = "Créditos"
	ColContactHours   = "HorasContacto"
	ColYear           = "Año"
	ColSemester       = "Semestre"
	ColRevisionDate   = "FechaUltimaRevisión"
	ColDescription    = "Descripción"
	ColComments       = "Comentarios"
	ColLastModifiedBy = "ModificadoPor"
	ColLastModifiedAt = "FechaModificación"
)

// CourseStatus is stored as 1 (active) or 0 (inactive).
type CourseStatus int

const (
	StatusInactive CourseStatus = 0
	StatusActive   CourseStatus = 1
)

func (s CourseStatus) String() string {
	if s == StatusActive {
		return "Active"
	}
	return "Inactive"
}

// Cell returns the value written to the remote table.
func (s CourseStatus) Cell() string {
	return strconv.Itoa(int(s))
}

func (s CourseStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseCourseStatus accepts Active/Inactive in English or Spanish, or the stored 1/0.
func ParseCourseStatus(raw string) (CourseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "1.0", "active", "activo":
		return StatusActive, nil
	case "0", "0.0", "inactive", "inactivo":
		return StatusInactive, nil
	}
	return StatusInactive, fmt.Errorf("invalid status %q", raw)
}

// FlexInt is an integer column value that keeps the raw text when the
// column could not be coerced.
type FlexInt struct {
	Int   int
	Text  string
	Valid bool
}

// IntValue returns a coerced FlexInt.
func IntValue(n int) FlexInt {
	return FlexInt{Int: n, Text: strconv.Itoa(n), Valid: true}
}

// TextValue returns an uncoerced FlexInt.
func TextValue(s string) FlexInt {
	return FlexInt{Text: s}
}

// ErrNotInteger is returned by ParseInt for values that are not whole numbers.
var ErrNotInteger = errors.New("not an integer")

// ParseInt accepts integers and integral floats such as "3.0", the form
// spreadsheet exports use for numeric cells.
func ParseInt(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ErrNotInteger
	}
	return int(f), nil
}

func (f FlexInt) String() string {
	if f.Valid {
		return strconv.Itoa(f.Int)
	}
	return f.Text
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if f.Valid {
		return json.Marshal(f.Int)
	}
	if f.Text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(f.Text)
}

// Course is one catalog entry of a program.
type Course struct {
	Program          Program      `json:"program"`
	Code             string       `json:"code"`
	TitleES          string       `json:"title_es"`
	TitleEN          string       `json:"title_en"`
	Status           CourseStatus `json:"status"`
	Credits          FlexInt      `json:"credits"`
	ContactHours     FlexInt      `json:"contact_hours"`
	Year             FlexInt      `json:"year"`
	Semester         FlexInt      `json:"semester"`
	LastRevisionDate string       `json:"last_revision_date"`
	Description      string       `json:"description"`
	Comments         string       `json:"comments"`
	LastModifiedBy   string       `json:"last_modified_by"`
	LastModifiedAt   string       `json:"last_modified_at"`
	Row              int          `json:"-"`
}

// Value returns the display text of a field.
func (c Course) Value(field CourseField) string {
	switch field {
	case FieldCode:
		return c.Code
	case FieldTitleES:
		return c.TitleES
	case FieldTitleEN:
		return c.TitleEN
	case FieldStatus:
		return c.Status.String()
	case FieldCredits:
		return c.Credits.String()
	case FieldContactHours:
		return c.ContactHours.String()
	case FieldYear:
		return c.Year.String()
	case FieldSemester:
		return c.Semester.String()
	case FieldRevisionDate:
		return c.LastRevisionDate
	case FieldDescription:
		return c.Description
	case FieldComments:
		return c.Comments
	}
	return ""
}

// set applies an already validated cell value to an editable field. Numeric
// fields keep text when their column was loaded as text.
func (c *Course) set(field CourseField, cell string, asText bool) {
	flex := func(cell string) FlexInt {
		if asText {
			return textCell(cell)
		}
		return flexCell(cell)
	}
	switch field {
	case FieldTitleES:
		c.TitleES = cell
	case FieldTitleEN:
		c.TitleEN = cell
	case FieldStatus:
		if s, err := ParseCourseStatus(cell); err == nil {
			c.Status = s
		}
	case FieldCredits:
		c.Credits = flex(cell)
	case FieldContactHours:
		c.ContactHours = flex(cell)
	case FieldYear:
		c.Year = flex(cell)
	case FieldSemester:
		c.Semester = flex(cell)
	case FieldRevisionDate:
		c.LastRevisionDate = cell
	case FieldDescription:
		c.Description = cell
	case FieldComments:
		c.Comments = cell
	}
}

func flexCell(cell string) FlexInt {
	if cell == "" {
		return FlexInt{}
	}
	if n, err := ParseInt(cell); err == nil {
		return IntValue(n)
	}
	return TextValue(cell)
}

func textCell(cell string) FlexInt {
	if cell == "" {
		return FlexInt{}
	}
	return TextValue(cell)
}
