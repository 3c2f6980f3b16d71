package main

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/pidb/catalog-api/internal/models"
)

var listColumns = []models.CourseField{
	models.FieldCode,
	models.FieldTitleES,
	models.FieldStatus,
	models.FieldCredits,
	models.FieldYear,
	models.FieldSemester,
}

func renderCourses(w io.Writer, courses []models.Course) {
	table := tablewriter.NewWriter(w)
	header := make([]string, len(listColumns))
	for i, f := range listColumns {
		header[i] = f.Header()
	}
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	for _, c := range courses {
		row := make([]string, len(listColumns))
		for i, f := range listColumns {
			row[i] = c.Value(f)
		}
		table.Append(row)
	}
	table.SetFooter(footer(len(listColumns), len(courses)))
	table.Render()
}

func renderCourse(w io.Writer, course models.Course) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "\n%s  %s\n", course.Code, course.TitleES) //nolint:errcheck
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Campo", "Valor"})
	table.SetColWidth(80)
	for _, f := range append([]models.CourseField{models.FieldCode}, models.EditableFields()...) {
		table.Append([]string{f.Header(), course.Value(f)})
	}
	table.Render()
}

func footer(columns, total int) []string {
	out := make([]string, columns)
	out[0] = "Total"
	out[columns-1] = strconv.Itoa(total)
	return out
}

func warn(w io.Writer, msg string) {
	color.New(color.FgYellow).Fprintln(w, msg) //nolint:errcheck
}
