package service

import (
	"strings"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/textnorm"
)

// Resolve applies the filter state to the table. Matches keep table order.
// A code or title filter yields at most one course; keyword matches are all
// returned and only a single match is selected implicitly.
func Resolve(table *models.CourseTable, state models.FilterState) models.Resolution {
	state = state.Normalize()
	res := models.Resolution{State: state, Matches: []models.Course{}}
	if table == nil {
		res.Outcome = models.OutcomeNoResults
		if state.Mode == models.FilterNone {
			res.Outcome = models.OutcomeNone
		}
		return res
	}

	switch state.Mode {
	case models.FilterByCode:
		if c, ok := table.Lookup(state.Code); ok {
			res.Matches = append(res.Matches, c)
		}
	case models.FilterByTitle:
		for _, c := range table.Courses {
			if strings.TrimSpace(c.TitleES) == state.Title {
				res.Matches = append(res.Matches, c)
				break
			}
		}
	case models.FilterByKeyword:
		if state.Field.Searchable() {
			for _, c := range table.Courses {
				if textnorm.Contains(c.Value(state.Field), state.Keyword) {
					res.Matches = append(res.Matches, c)
				}
			}
		}
	default:
		res.Outcome = models.OutcomeNone
		res.Matches = append(res.Matches, table.Courses...)
		return res
	}

	switch len(res.Matches) {
	case 0:
		res.Outcome = models.OutcomeNoResults
	case 1:
		res.Outcome = models.OutcomeSingle
		selected := res.Matches[0]
		res.Selected = &selected
	default:
		res.Outcome = models.OutcomeMultiple
	}
	return res
}

// Select picks a course from a resolution. An empty code is accepted only
// when the resolution already has a single match.
func Select(res models.Resolution, code string) (models.Course, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		if res.Selected != nil {
			return *res.Selected, true
		}
		return models.Course{}, false
	}
	for _, c := range res.Matches {
		if c.Code == code {
			return c, true
		}
	}
	return models.Course{}, false
}
