// Command catalogctl browses the published course catalog from a terminal.
//
//	catalogctl list   -program pharmd
//	catalogctl show   -program phd "CFAR 8001"
//	catalogctl search -program pharmd -title "Farmacología Clínica"
//	catalogctl search -program pharmd -field description -keyword renal
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/repository"
	"github.com/pidb/catalog-api/internal/service"
	"github.com/pidb/catalog-api/pkg/config"
	"github.com/pidb/catalog-api/pkg/tabular"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err) //nolint:errcheck
		os.Exit(1)
	}
}

type catalogLoader interface {
	Load(ctx context.Context, program models.Program) (*models.CourseTable, error)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: catalogctl list|show|search [flags]")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	reader := tabular.NewPublishedReader(cfg.Sheets.ExportBaseURL, nil, tabular.WithTimeout(cfg.Sheets.Timeout))
	repo := repository.NewCatalogRepository(reader, map[models.Program]tabular.TableRef{
		models.ProgramPharmD: {SpreadsheetID: cfg.Programs.PharmD.SheetID, GID: cfg.Programs.PharmD.SheetGID},
		models.ProgramPhD:    {SpreadsheetID: cfg.Programs.PhD.SheetID, GID: cfg.Programs.PhD.SheetGID},
	})
	return dispatch(ctx, repo, args, out)
}

func dispatch(ctx context.Context, repo catalogLoader, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	programFlag := fs.String("program", "pharmd", "program: pharmd or phd")
	code := fs.String("code", "", "search by exact course code")
	title := fs.String("title", "", "search by exact Spanish title")
	field := fs.String("field", "", "field searched by -keyword")
	keyword := fs.String("keyword", "", "keyword searched in -field")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	program, err := models.ParseProgram(*programFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	table, err := repo.Load(ctx, program)
	if err != nil {
		warn(out, fmt.Sprintf("no se pudo cargar el catálogo de %s: %v", program, err))
		return nil
	}
	if table.Empty() {
		warn(out, "No hay datos disponibles.")
		return nil
	}

	switch cmd {
	case "list":
		renderCourses(out, table.Courses)
		return nil
	case "show":
		target := strings.TrimSpace(strings.Join(fs.Args(), " "))
		if target == "" {
			target = *code
		}
		course, ok := table.Lookup(target)
		if !ok {
			warn(out, fmt.Sprintf("El curso %s no existe en %s.", target, program))
			return nil
		}
		renderCourse(out, course)
		return nil
	case "search":
		state, err := searchState(*code, *title, *field, *keyword)
		if err != nil {
			return err
		}
		res := service.Resolve(table, state)
		switch res.Outcome {
		case models.OutcomeNoResults:
			warn(out, "No se encontraron cursos.")
		case models.OutcomeSingle:
			renderCourse(out, *res.Selected)
		default:
			renderCourses(out, res.Matches)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func searchState(code, title, field, keyword string) (models.FilterState, error) {
	var state models.FilterState
	switch {
	case strings.TrimSpace(code) != "":
		return state.WithCode(code), nil
	case strings.TrimSpace(title) != "":
		return state.WithTitle(title), nil
	case strings.TrimSpace(keyword) != "":
		f, err := models.ParseCourseField(field)
		if err != nil {
			return state, err
		}
		return state.WithKeyword(f, keyword), nil
	default:
		return state, errors.New("search needs -code, -title or -field with -keyword")
	}
}
