package dto

import "github.com/pidb/catalog-api/internal/models"

// FilterRequest captures POST /catalog/filters payload. Mode picks which of
// the remaining values is used.
type FilterRequest struct {
	Mode    models.FilterMode `json:"mode" validate:"required,oneof=code title keyword"`
	Code    string            `json:"code,omitempty" validate:"required_if=Mode code"`
	Title   string            `json:"title,omitempty" validate:"required_if=Mode title"`
	Field   string            `json:"field,omitempty" validate:"required_if=Mode keyword"`
	Keyword string            `json:"keyword,omitempty" validate:"required_if=Mode keyword,max=200"`
}

// SelectCourseRequest disambiguates a multi-match filter.
type SelectCourseRequest struct {
	Code string `json:"code"`
}

// SwitchProgramRequest captures POST /session/program payload.
type SwitchProgramRequest struct {
	Program string `json:"program" validate:"required"`
}

// UpdateFieldRequest captures PATCH /catalog/:program/courses/:code payload.
type UpdateFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value" validate:"max=5000"`
}

// CourseListResponse is the current view of a program's table.
type CourseListResponse struct {
	Program     models.Program        `json:"program"`
	Outcome     models.FilterOutcome  `json:"outcome"`
	Filter      models.FilterState    `json:"filter"`
	Courses     []models.Course       `json:"courses"`
	Options     []models.CourseOption `json:"options,omitempty"`
	Selected    *models.Course        `json:"selected,omitempty"`
	Codes       []string              `json:"codes"`
	TextColumns []string              `json:"text_columns,omitempty"`
}

// ProgramInfo describes a selectable program.
type ProgramInfo struct {
	Program       models.Program `json:"program"`
	RootFolderURL string         `json:"root_folder_url,omitempty"`
	Active        bool           `json:"active"`
}
