package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/dto"
	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/repository"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/tabular"
)

func loadPharmd(t *testing.T, fx *catalogFixture) *models.CourseTable {
	t.Helper()
	table, err := fx.catalog.Load(context.Background(), models.ProgramPharmD)
	require.NoError(t, err)
	return table
}

func codesOf(courses []models.Course) []string {
	out := make([]string, len(courses))
	for i, c := range courses {
		out[i] = c.Code
	}
	return out
}

func TestResolveNoFilterListsEverything(t *testing.T) {
	table := loadPharmd(t, newCatalogFixture(t))
	res := Resolve(table, models.FilterState{})
	assert.Equal(t, models.OutcomeNone, res.Outcome)
	assert.Equal(t, []string{"FARM 7101", "FARM 7102", "FARM 7103", "FARM 7104"}, codesOf(res.Matches))
	assert.Nil(t, res.Selected)
}

func TestResolveByCode(t *testing.T) {
	table := loadPharmd(t, newCatalogFixture(t))

	res := Resolve(table, models.FilterState{}.WithCode(" FARM 7102 "))
	require.Equal(t, models.OutcomeSingle, res.Outcome)
	assert.Equal(t, "FARM 7102", res.Selected.Code)

	res = Resolve(table, models.FilterState{}.WithCode("farm 7102"))
	assert.Equal(t, models.OutcomeNoResults, res.Outcome, "codes match exactly")
}

func TestResolveByTitleTakesFirstRow(t *testing.T) {
	records := pharmdRecords()
	records = append(records, []string{"FARM 7199", "1", "Farmacología Clínica", "", "3", "45", "1", "1", "", "", "", "", ""})
	table := repository.BuildCourseTable(models.ProgramPharmD, tabular.FromRecords(records), time.Now())

	res := Resolve(table, models.FilterState{}.WithTitle("Farmacología Clínica"))
	require.Equal(t, models.OutcomeSingle, res.Outcome)
	assert.Equal(t, "FARM 7101", res.Selected.Code)

	res = Resolve(table, models.FilterState{}.WithTitle("farmacologia clinica"))
	assert.Equal(t, models.OutcomeNoResults, res.Outcome)
}

func TestResolveByKeywordIgnoresAccentsAndCase(t *testing.T) {
	table := loadPharmd(t, newCatalogFixture(t))

	res := Resolve(table, models.FilterState{}.WithKeyword(models.FieldTitleES, "FARMACOLOGIA"))
	require.Equal(t, models.OutcomeSingle, res.Outcome)
	assert.Equal(t, "FARM 7101", res.Selected.Code)

	res = Resolve(table, models.FilterState{}.WithKeyword(models.FieldDescription, "farmac"))
	assert.Equal(t, models.OutcomeMultiple, res.Outcome)
	assert.Nil(t, res.Selected, "several matches are never auto-selected")
	assert.Equal(t, []string{"FARM 7101", "FARM 7102", "FARM 7104"}, codesOf(res.Matches))
	assert.Equal(t, models.CourseOption{Code: "FARM 7101", Title: "Farmacología Clínica"}, res.Options()[0])

	res = Resolve(table, models.FilterState{}.WithKeyword(models.FieldDescription, "xyz"))
	assert.Equal(t, models.OutcomeNoResults, res.Outcome)
}

func TestResolveLegacyCombinedStatePrefersCode(t *testing.T) {
	table := loadPharmd(t, newCatalogFixture(t))
	legacy := models.FilterState{Code: "FARM 7103", Title: "Farmacia Comunitaria", Field: models.FieldTitleES, Keyword: "farm"}

	res := Resolve(table, legacy)
	assert.Equal(t, models.FilterByCode, res.State.Mode)
	require.NotNil(t, res.Selected)
	assert.Equal(t, "FARM 7103", res.Selected.Code)
}

func TestSelect(t *testing.T) {
	table := loadPharmd(t, newCatalogFixture(t))
	res := Resolve(table, models.FilterState{}.WithKeyword(models.FieldDescription, "farmac"))

	course, ok := Select(res, "FARM 7104")
	require.True(t, ok)
	assert.Equal(t, "Farmacia Comunitaria", course.TitleES)

	_, ok = Select(res, "FARM 7103")
	assert.False(t, ok, "only matches can be selected")

	_, ok = Select(res, "")
	assert.False(t, ok)
}

func newFilterService(fx *catalogFixture) *FilterService {
	return NewFilterService(fx.catalog, fx.sessions, fx.audit, nil, zap.NewNop())
}

func TestFilterServiceApplyStoresStateAndAudits(t *testing.T) {
	fx := newCatalogFixture(t)
	svc := newFilterService(fx)
	session := testSession(models.ProgramPharmD)

	result, err := svc.Apply(context.Background(), session, dto.FilterRequest{Mode: models.FilterByKeyword, Field: "description", Keyword: "Farmacéutico"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoResults, result.Resolution.Outcome)

	result, err = svc.Apply(context.Background(), session, dto.FilterRequest{Mode: models.FilterByCode, Code: "FARM 7101"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSingle, result.Resolution.Outcome)
	assert.Equal(t, "FARM 7101", result.Session.SelectedCode)

	stored, err := fx.sessions.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FilterState{Mode: models.FilterByCode, Code: "FARM 7101"}, stored.Filter)
	assert.Equal(t, []string{"search: description ~ Farmacéutico", "search: code = FARM 7101"}, fx.audit.actions())
}

func TestFilterServiceApplyRejectsBadRequests(t *testing.T) {
	fx := newCatalogFixture(t)
	svc := newFilterService(fx)
	session := testSession(models.ProgramPharmD)

	cases := []dto.FilterRequest{
		{Mode: models.FilterByCode},
		{Mode: models.FilterByCode, Code: "   "},
		{Mode: models.FilterByKeyword, Field: "credits", Keyword: "3"},
		{Mode: "fuzzy", Keyword: "x"},
	}
	for _, req := range cases {
		_, err := svc.Apply(context.Background(), session, req)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "request %+v", req)
	}
	assert.Empty(t, fx.audit.events)
}

func TestFilterServiceSelectRequiresExplicitChoice(t *testing.T) {
	fx := newCatalogFixture(t)
	svc := newFilterService(fx)
	session := testSession(models.ProgramPharmD)

	applied, err := svc.Apply(context.Background(), session, dto.FilterRequest{Mode: models.FilterByKeyword, Field: "description", Keyword: "farmac"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMultiple, applied.Resolution.Outcome)
	assert.Empty(t, applied.Session.SelectedCode)

	_, err = svc.Select(context.Background(), applied.Session, "")
	assert.True(t, errors.Is(err, appErrors.ErrAmbiguousSelection))

	_, err = svc.Select(context.Background(), applied.Session, "FARM 7103")
	assert.True(t, errors.Is(err, appErrors.ErrCourseNotFound))

	selected, err := svc.Select(context.Background(), applied.Session, "FARM 7102")
	require.NoError(t, err)
	assert.Equal(t, "FARM 7102", selected.Session.SelectedCode)
	assert.Equal(t, "FARM 7102", selected.Resolution.Selected.Code)
}

func TestFilterServiceClear(t *testing.T) {
	fx := newCatalogFixture(t)
	svc := newFilterService(fx)
	session := testSession(models.ProgramPharmD)
	session.Filter = models.FilterState{}.WithTitle("Seminario de Farmacia")
	session.SelectedCode = "FARM 7103"

	result, err := svc.Clear(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, models.FilterNone, result.Session.Filter.Mode)
	assert.Empty(t, result.Session.SelectedCode)
	assert.Equal(t, models.OutcomeNone, result.Resolution.Outcome)
	assert.Len(t, result.Resolution.Matches, 4)
	assert.Equal(t, []string{models.AuditActionClearFilters}, fx.audit.actions())
}

func TestFilterServiceCurrentFiltersOwnProgramOnly(t *testing.T) {
	fx := newCatalogFixture(t)
	svc := newFilterService(fx)
	session := testSession(models.ProgramPharmD)
	session.Filter = models.FilterState{}.WithCode("FARM 7104")

	own, err := svc.Current(context.Background(), session, models.ProgramPharmD)
	require.NoError(t, err)
	assert.Equal(t, []string{"FARM 7104"}, codesOf(own.Resolution.Matches))

	other, err := svc.Current(context.Background(), session, models.ProgramPhD)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNone, other.Resolution.Outcome)
	assert.Equal(t, []string{"CFAR 8001"}, codesOf(other.Resolution.Matches))
	assert.Empty(t, fx.audit.events, "listing is not audited")
}
