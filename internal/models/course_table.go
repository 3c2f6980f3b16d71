package models

import (
	"sort"
	"strings"
	"time"
)

// CourseTable is an immutable snapshot of one program's catalog, in sheet order.
type CourseTable struct {
	Program     Program   `json:"program"`
	Courses     []Course  `json:"courses"`
	TextColumns []string  `json:"text_columns,omitempty"`
	LoadedAt    time.Time `json:"loaded_at"`

	index map[string]int
}

// NewCourseTable indexes courses by code. Should a code repeat, the first row wins.
func NewCourseTable(program Program, courses []Course, textColumns []string, loadedAt time.Time) *CourseTable {
	t := &CourseTable{
		Program:     program,
		Courses:     courses,
		TextColumns: textColumns,
		LoadedAt:    loadedAt,
		index:       make(map[string]int, len(courses)),
	}
	for i, c := range courses {
		if _, exists := t.index[c.Code]; !exists {
			t.index[c.Code] = i
		}
	}
	return t
}

// Lookup returns the course with the exact code.
func (t *CourseTable) Lookup(code string) (Course, bool) {
	if t == nil {
		return Course{}, false
	}
	i, ok := t.index[strings.TrimSpace(code)]
	if !ok {
		return Course{}, false
	}
	return t.Courses[i], true
}

// Codes returns the sorted, de-duplicated course codes for selection lists.
func (t *CourseTable) Codes() []string {
	if t == nil {
		return nil
	}
	codes := make([]string, 0, len(t.index))
	for code := range t.index {
		if code != "" {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

func (t *CourseTable) Empty() bool { return t == nil || len(t.Courses) == 0 }

func (t *CourseTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Courses)
}

// IsTextColumn reports whether the header was degraded to text on load.
func (t *CourseTable) IsTextColumn(header string) bool {
	for _, c := range t.TextColumns {
		if c == header {
			return true
		}
	}
	return false
}

// CoursePatch is a successful single-field write plus its provenance stamp.
type CoursePatch struct {
	Field      CourseField
	Cell       string
	ModifiedBy string
	ModifiedAt string
}

// Apply returns a copy of the table with the patch applied to code. The
// receiver is left untouched so concurrent readers keep a consistent view.
func (t *CourseTable) Apply(code string, patch CoursePatch) (*CourseTable, bool) {
	i, ok := t.index[strings.TrimSpace(code)]
	if !ok {
		return t, false
	}
	courses := make([]Course, len(t.Courses))
	copy(courses, t.Courses)
	c := courses[i]
	c.set(patch.Field, patch.Cell, t.IsTextColumn(patch.Field.Header()))
	c.LastModifiedBy = patch.ModifiedBy
	c.LastModifiedAt = patch.ModifiedAt
	courses[i] = c

	next := NewCourseTable(t.Program, courses, t.TextColumns, t.LoadedAt)
	return next, true
}
