package repository

import (
	"context"
	"fmt"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/tabular"
)

// FolderLinkRepository reads the shared folder index, one partition per program.
type FolderLinkRepository struct {
	reader     tabular.Reader
	partitions map[models.Program]tabular.TableRef
}

func NewFolderLinkRepository(reader tabular.Reader, partitions map[models.Program]tabular.TableRef) *FolderLinkRepository {
	return &FolderLinkRepository{reader: reader, partitions: partitions}
}

// Load returns the folder links of program keyed by course code. Rows whose
// Programa column names another program are ignored.
func (r *FolderLinkRepository) Load(ctx context.Context, program models.Program) (map[string]models.FolderLink, error) {
	ref, ok := r.partitions[program]
	if !ok || ref.SpreadsheetID == "" {
		return map[string]models.FolderLink{}, fmt.Errorf("no folder index configured for %s", program)
	}
	snap, err := r.reader.LoadTable(ctx, ref)
	if err != nil {
		return map[string]models.FolderLink{}, err
	}

	_, codeHeader, hasCode := snap.Column(models.ColFolderCode)
	_, idHeader, hasID := snap.Column(models.ColFolderID)
	_, programHeader, hasProgram := snap.Column(models.ColFolderProgram)
	links := make(map[string]models.FolderLink, len(snap.Rows))
	if !hasCode || !hasID {
		return links, nil
	}
	for _, row := range snap.Rows {
		if hasProgram {
			if p, err := models.ParseProgram(row.Get(programHeader)); err == nil && p != program {
				continue
			}
		}
		code, folderID := row.Get(codeHeader), row.Get(idHeader)
		if code == "" || folderID == "" {
			continue
		}
		if _, exists := links[code]; exists {
			continue
		}
		links[code] = models.FolderLink{Code: code, Program: program, FolderID: folderID}
	}
	return links, nil
}
