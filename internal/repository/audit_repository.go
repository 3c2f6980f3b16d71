package repository

import (
	"context"
	"fmt"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/clock"
	"github.com/pidb/catalog-api/pkg/tabular"
)

// SheetAuditRepository appends audit events to the audit worksheet as
// (timestamp, username, action, role).
type SheetAuditRepository struct {
	writer tabular.Writer
	ref    tabular.TableRef
	clock  *clock.CivilClock
}

func NewSheetAuditRepository(writer tabular.Writer, ref tabular.TableRef, civil *clock.CivilClock) *SheetAuditRepository {
	if civil == nil {
		civil = clock.NewCivil(clock.DefaultZone)
	}
	return &SheetAuditRepository{writer: writer, ref: ref, clock: civil}
}

func (r *SheetAuditRepository) Name() string { return "sheets" }

func (r *SheetAuditRepository) Append(ctx context.Context, event models.AuditEvent) error {
	row := []string{r.clock.Stamp(event.Timestamp), event.Username, event.Action, event.Role}
	if err := r.writer.AppendRow(ctx, r.ref, row); err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	return nil
}
