package models

import (
	"fmt"
	"time"
)

// Fixed audit actions. Parametrised ones are built by the helpers below.
const (
	AuditActionLogin         = "login"
	AuditActionLogout        = "logout"
	AuditActionPasswordReset = "password_reset"
	AuditActionClearFilters  = "clear_filters"
)

// AuditEvent is one append-only audit record.
type AuditEvent struct {
	Timestamp time.Time `db:"occurred_at" json:"timestamp"`
	Username  string    `db:"username" json:"username"`
	Action    string    `db:"action" json:"action"`
	Role      string    `db:"role" json:"role,omitempty"`
}

func EditAction(code string, field CourseField) string {
	return fmt.Sprintf("edit: %s - %s", code, field)
}

func SearchCodeAction(code string) string {
	return "search: code = " + code
}

func SearchTitleAction(title string) string {
	return "search: title = " + title
}

func SearchKeywordAction(field CourseField, keyword string) string {
	return fmt.Sprintf("search: %s ~ %s", field, keyword)
}

func ViewCourseAction(code string) string {
	return "view_course: " + code
}

func SwitchProgramAction(from, to Program) string {
	return fmt.Sprintf("switch_program: %s → %s", from, to)
}

func AssistantTabularAction(query string) string {
	return "chatbot_tabular_query: " + query
}

func AssistantSemanticAction(query string) string {
	return "chatbot_semantic_query: " + query
}

func ExportAction(program Program, format ExportFormat) string {
	return fmt.Sprintf("export: %s %s", program, format)
}
