package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/clock"
)

// AuditSink persists audit events to one destination.
type AuditSink interface {
	Name() string
	Append(ctx context.Context, event models.AuditEvent) error
}

type auditRecorder interface {
	Record(ctx context.Context, event models.AuditEvent) error
}

type auditMetrics interface {
	RecordAuditFailure(sink string)
}

// AuditService fans each event out to the configured sinks.
type AuditService struct {
	sinks   []AuditSink
	clock   clock.Clock
	metrics auditMetrics
	logger  *zap.Logger
	timeout time.Duration
}

// NewAuditService constructs the audit logger. The first sink is treated as
// the record of truth but every sink is attempted.
func NewAuditService(sinks []AuditSink, clk clock.Clock, metrics auditMetrics, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewCivil("")
	}
	filtered := make([]AuditSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &AuditService{
		sinks:   filtered,
		clock:   clk,
		metrics: metrics,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Record appends event to every sink. A failure never aborts the calling
// operation: it is logged, counted and returned so callers can surface a warning.
func (s *AuditService) Record(ctx context.Context, event models.AuditEvent) error {
	if len(s.sinks) == 0 {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}

	// The event outlives a cancelled request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Append(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			if s.metrics != nil {
				s.metrics.RecordAuditFailure(sink.Name())
			}
			s.logger.Warn("audit append failed",
				zap.String("sink", sink.Name()),
				zap.String("username", event.Username),
				zap.String("action", event.Action),
				zap.Error(err),
			)
		}
	}
	return errors.Join(errs...)
}

// Sinks lists the configured sink names in fan-out order.
func (s *AuditService) Sinks() []string {
	names := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		names[i] = sink.Name()
	}
	return names
}

const auditWarning = "la actividad no pudo registrarse en la bitácora"

// recordAudit writes an event through recorder and returns the warnings to
// surface to the user, if any.
func recordAudit(ctx context.Context, recorder auditRecorder, actor models.UserInfo, action string) []string {
	if recorder == nil {
		return nil
	}
	err := recorder.Record(ctx, models.AuditEvent{
		Username: actor.Username,
		Action:   action,
		Role:     actor.Role,
	})
	if err == nil {
		return nil
	}
	return []string{auditWarning}
}

func appendWarnings(dst []string, src ...string) []string {
	for _, w := range src {
		if strings.TrimSpace(w) != "" {
			dst = append(dst, w)
		}
	}
	return dst
}
