package models

import "time"

// SessionState is what a session remembers between requests.
type SessionState struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Role         string      `json:"role"`
	LoggedIn     bool        `json:"logged_in"`
	Program      Program     `json:"program"`
	Filter       FilterState `json:"filter"`
	SelectedCode string      `json:"selected_code,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Actor returns the identity recorded on audit events.
func (s SessionState) Actor() UserInfo {
	return UserInfo{Username: s.Username, Role: s.Role}
}

// SwitchedTo returns the session moved to program with filters and selection reset.
func (s SessionState) SwitchedTo(program Program) SessionState {
	s.Program = program
	s.Filter = s.Filter.Cleared()
	s.SelectedCode = ""
	return s
}
