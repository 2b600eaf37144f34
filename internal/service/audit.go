package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/progression"
)

// BoundsRepairer rewrites stored values that lie outside a bound.
type BoundsRepairer interface {
	// ClampOutOfBounds sets every value of field outside b to the nearest
	// end of b and returns how many records changed.
	ClampOutOfBounds(ctx context.Context, kind progression.Kind, field progression.Field, b progression.Bound) (int64, error)
}

// AuditReport counts repaired records per kind and field path.
type AuditReport struct {
	Repaired map[progression.Kind]map[string]int64
	Total    int64
}

// AuditService finds records written out of bounds, for example by an
// unguarded writer or a manual edit, and clamps them back.
type AuditService struct {
	repairer BoundsRepairer
	log      *logger.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(repairer BoundsRepairer, log *logger.Logger) *AuditService {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditService{repairer: repairer, log: log.With("service", "AuditService")}
}

// ClampOutOfBounds walks every bounded field of every kind. A failure on one
// field does not stop the others; all failures are returned joined.
func (s *AuditService) ClampOutOfBounds(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{Repaired: make(map[progression.Kind]map[string]int64)}
	var errs []error

	for _, schema := range []progression.Schema{progression.CharacterSchema(), progression.GuildProgressSchema()} {
		for _, f := range schema.Fields() {
			if err := ctx.Err(); err != nil {
				return report, errors.Join(append(errs, err)...)
			}
			b, _ := schema.Bound(f)
			n, err := s.repairer.ClampOutOfBounds(ctx, schema.Kind(), f, b)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", schema.Kind(), f.Path(), storeUnavailable(err)))
				continue
			}
			if n == 0 {
				continue
			}
			if report.Repaired[schema.Kind()] == nil {
				report.Repaired[schema.Kind()] = make(map[string]int64)
			}
			report.Repaired[schema.Kind()][f.Path()] = n
			report.Total += n
			s.log.Warn("clamped out-of-bounds values",
				"kind", schema.Kind(),
				"field", f.Path(),
				"bound", b.String(),
				"records", n,
			)
		}
	}
	return report, errors.Join(errs...)
}
