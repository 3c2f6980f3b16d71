package models

import "strings"

// FilterMode is the single active filter of a session.
type FilterMode string

const (
	FilterNone      FilterMode = "none"
	FilterByCode    FilterMode = "code"
	FilterByTitle   FilterMode = "title"
	FilterByKeyword FilterMode = "keyword"
)

// FilterState holds at most one active filter. Sessions persisted before
// modes were exclusive may carry several values with an empty Mode; Normalize
// resolves those with precedence code > title > keyword.
type FilterState struct {
	Mode    FilterMode  `json:"mode"`
	Code    string      `json:"code,omitempty"`
	Title   string      `json:"title,omitempty"`
	Field   CourseField `json:"field,omitempty"`
	Keyword string      `json:"keyword,omitempty"`
}

func (f FilterState) WithCode(code string) FilterState {
	return FilterState{Mode: FilterByCode, Code: strings.TrimSpace(code)}.Normalize()
}

func (f FilterState) WithTitle(title string) FilterState {
	return FilterState{Mode: FilterByTitle, Title: strings.TrimSpace(title)}.Normalize()
}

func (f FilterState) WithKeyword(field CourseField, keyword string) FilterState {
	return FilterState{Mode: FilterByKeyword, Field: field, Keyword: strings.TrimSpace(keyword)}.Normalize()
}

func (f FilterState) Cleared() FilterState {
	return FilterState{Mode: FilterNone}
}

// Normalize returns the state with exactly one mode and only that mode's values.
func (f FilterState) Normalize() FilterState {
	mode := f.Mode
	if mode == "" || mode == FilterNone {
		switch {
		case strings.TrimSpace(f.Code) != "":
			mode = FilterByCode
		case strings.TrimSpace(f.Title) != "":
			mode = FilterByTitle
		case strings.TrimSpace(f.Keyword) != "" && f.Field != "":
			mode = FilterByKeyword
		default:
			mode = FilterNone
		}
	}

	switch mode {
	case FilterByCode:
		if code := strings.TrimSpace(f.Code); code != "" {
			return FilterState{Mode: FilterByCode, Code: code}
		}
	case FilterByTitle:
		if title := strings.TrimSpace(f.Title); title != "" {
			return FilterState{Mode: FilterByTitle, Title: title}
		}
	case FilterByKeyword:
		if kw := strings.TrimSpace(f.Keyword); kw != "" && f.Field != "" {
			return FilterState{Mode: FilterByKeyword, Field: f.Field, Keyword: kw}
		}
	}
	return FilterState{Mode: FilterNone}
}

// Active reports whether a filter narrows the table.
func (f FilterState) Active() bool {
	return f.Normalize().Mode != FilterNone
}

// FilterOutcome is the cardinality class of a resolution.
type FilterOutcome string

const (
	OutcomeNone      FilterOutcome = "none"
	OutcomeNoResults FilterOutcome = "no_results"
	OutcomeSingle    FilterOutcome = "single"
	OutcomeMultiple  FilterOutcome = "multiple"
)

// CourseOption is an entry of a disambiguation list.
type CourseOption struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// Resolution is the result of applying a filter to a table. Selected is set
// only when exactly one course is active.
type Resolution struct {
	Outcome  FilterOutcome `json:"outcome"`
	State    FilterState   `json:"state"`
	Matches  []Course      `json:"matches"`
	Selected *Course       `json:"selected,omitempty"`
}

// Options lists the matches as code/title pairs for disambiguation.
func (r Resolution) Options() []CourseOption {
	opts := make([]CourseOption, len(r.Matches))
	for i, c := range r.Matches {
		opts[i] = CourseOption{Code: c.Code, Title: c.TitleES}
	}
	return opts
}
