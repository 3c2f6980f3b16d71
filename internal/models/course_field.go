package models

import (
	"fmt"
	"strings"
)

// CourseField names a course attribute addressable by edits and searches.
type CourseField string

const (
	FieldCode         CourseField = "code"
	FieldTitleES      CourseField = "title_es"
	FieldTitleEN      CourseField = "title_en"
	FieldStatus       CourseField = "status"
	FieldCredits      CourseField = "credits"
	FieldContactHours CourseField = "contact_hours"
	FieldYear         CourseField = "year"
	FieldSemester     CourseField = "semester"
	FieldRevisionDate CourseField = "revision_date"
	FieldDescription  CourseField = "description"
	FieldComments     CourseField = "comments"
)

var fieldHeaders = map[CourseField]string{
	FieldCode:         ColCode,
	FieldTitleES:      ColTitleES,
	FieldTitleEN:      ColTitleEN,
	FieldStatus:       ColStatus,
	FieldCredits:      ColCredits,
	FieldContactHours: ColContactHours,
	FieldYear:         ColYear,
	FieldSemester:     ColSemester,
	FieldRevisionDate: ColRevisionDate,
	FieldDescription:  ColDescription,
	FieldComments:     ColComments,
}

// EditableFields lists the fields UpdateField accepts. The code is never one.
func EditableFields() []CourseField {
	return []CourseField{
		FieldTitleES, FieldTitleEN, FieldStatus, FieldCredits, FieldContactHours,
		FieldYear, FieldSemester, FieldRevisionDate, FieldDescription, FieldComments,
	}
}

// SearchableFields lists the fields keyword search may target.
func SearchableFields() []CourseField {
	return []CourseField{FieldCode, FieldTitleES, FieldTitleEN, FieldDescription, FieldComments, FieldRevisionDate}
}

// ParseCourseField accepts the field name or its sheet header.
func ParseCourseField(raw string) (CourseField, error) {
	s := strings.TrimSpace(raw)
	for f, header := range fieldHeaders {
		if strings.EqualFold(s, string(f)) || s == header {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown course field %q", raw)
}

// Header returns the sheet column holding the field.
func (f CourseField) Header() string { return fieldHeaders[f] }

// Numeric reports whether the field is stored as an integer.
func (f CourseField) Numeric() bool {
	switch f {
	case FieldCredits, FieldContactHours, FieldYear, FieldSemester:
		return true
	}
	return false
}

func (f CourseField) Editable() bool {
	for _, e := range EditableFields() {
		if e == f {
			return true
		}
	}
	return false
}

func (f CourseField) Searchable() bool {
	for _, s := range SearchableFields() {
		if s == f {
			return true
		}
	}
	return false
}

// NormalizeValue validates raw for the field and returns the cell to write.
func (f CourseField) NormalizeValue(raw string) (string, error) {
	switch {
	case f == FieldStatus:
		s, err := ParseCourseStatus(raw)
		if err != nil {
			return "", err
		}
		return s.Cell(), nil
	case f.Numeric():
		n, err := ParseInt(raw)
		if err != nil {
			return "", fmt.Errorf("%s must be an integer", f)
		}
		return fmt.Sprint(n), nil
	}
	return raw, nil
}
