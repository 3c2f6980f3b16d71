package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *CourseTable {
	return NewCourseTable(ProgramPharmD, []Course{
		{Code: "FARM 7102", TitleES: "Terapéutica", Credits: IntValue(4), Status: StatusActive, Row: 2},
		{Code: "FARM 7101", TitleES: "Farmacología", Credits: IntValue(3), Status: StatusActive, Row: 3},
		{Code: "FARM 7102", TitleES: "Duplicado", Row: 4},
	}, nil, time.Now())
}

func TestLookupReturnsEveryLoadedCourse(t *testing.T) {
	table := sampleTable()
	for _, c := range table.Courses[:2] {
		got, ok := table.Lookup(c.Code)
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
	dup, _ := table.Lookup("FARM 7102")
	assert.Equal(t, "Terapéutica", dup.TitleES)

	_, ok := table.Lookup("NOPE")
	assert.False(t, ok)
}

func TestCodesSortedAndUnique(t *testing.T) {
	assert.Equal(t, []string{"FARM 7101", "FARM 7102"}, sampleTable().Codes())
}

func TestApplyReturnsPatchedCopy(t *testing.T) {
	table := sampleTable()
	next, ok := table.Apply("FARM 7101", CoursePatch{
		Field: FieldCredits, Cell: "5", ModifiedBy: "ana", ModifiedAt: "2024-05-01 10:00:00",
	})
	require.True(t, ok)

	got, _ := next.Lookup("FARM 7101")
	assert.Equal(t, IntValue(5), got.Credits)
	assert.Equal(t, "ana", got.LastModifiedBy)
	assert.Equal(t, "2024-05-01 10:00:00", got.LastModifiedAt)

	orig, _ := table.Lookup("FARM 7101")
	assert.Equal(t, IntValue(3), orig.Credits)

	_, ok = table.Apply("NOPE", CoursePatch{Field: FieldComments})
	assert.False(t, ok)
}

func TestApplyKeepsTextColumnsAsText(t *testing.T) {
	table := NewCourseTable(ProgramPhD, []Course{
		{Code: "CFAR 8001", Credits: TextValue("3-4"), Year: IntValue(1), Row: 2},
	}, []string{ColCredits}, time.Now())

	next, ok := table.Apply("CFAR 8001", CoursePatch{Field: FieldCredits, Cell: "4"})
	require.True(t, ok)
	got, _ := next.Lookup("CFAR 8001")
	assert.Equal(t, TextValue("4"), got.Credits, "matches what a reload of the text column yields")

	next, _ = next.Apply("CFAR 8001", CoursePatch{Field: FieldYear, Cell: "2"})
	got, _ = next.Lookup("CFAR 8001")
	assert.Equal(t, IntValue(2), got.Year)
	assert.Equal(t, []string{ColCredits}, next.TextColumns)
}

func TestFlexIntJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A FlexInt `json:"a"`
		B FlexInt `json:"b"`
		C FlexInt `json:"c"`
	}{IntValue(3), TextValue("3-4"), FlexInt{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":"3-4","c":null}`, string(out))
}

func TestParseInt(t *testing.T) {
	n, err := ParseInt(" 3.0 ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ParseInt("3.5")
	assert.ErrorIs(t, err, ErrNotInteger)
	_, err = ParseInt("tres")
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestCourseFieldNormalizeValue(t *testing.T) {
	cell, err := FieldStatus.NormalizeValue("Inactivo")
	require.NoError(t, err)
	assert.Equal(t, "0", cell)

	cell, err = FieldCredits.NormalizeValue("4")
	require.NoError(t, err)
	assert.Equal(t, "4", cell)

	_, err = FieldYear.NormalizeValue("primero")
	assert.Error(t, err)

	cell, err = FieldComments.NormalizeValue("Actualizado 2024")
	require.NoError(t, err)
	assert.Equal(t, "Actualizado 2024", cell)

	assert.False(t, FieldCode.Editable())
	f, err := ParseCourseField("Descripción")
	require.NoError(t, err)
	assert.Equal(t, FieldDescription, f)
}
