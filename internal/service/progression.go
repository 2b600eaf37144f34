package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/forgo/questline/api/internal/events"
	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
	"github.com/forgo/questline/api/internal/tracing"
)

const tracerName = "questline/service"

// ProgressStore is the persistence boundary for accumulable records.
type ProgressStore interface {
	// ReadEntity returns nil, nil when the record does not exist.
	ReadEntity(ctx context.Context, ref model.EntityRef) (*model.Entity, error)
	// WriteEntity applies one combined write and returns the record after
	// it. It returns nil, nil when no record matched.
	WriteEntity(ctx context.Context, ref model.EntityRef, w model.EntityWrite) (*model.Entity, error)
	// CreateEntity inserts a record. It returns an error wrapping
	// model.ErrUniqueViolation when the key is already taken.
	CreateEntity(ctx context.Context, ref model.EntityRef, initial map[progression.Field]int64) (*model.Entity, error)
	// ListGuildProgress returns every guild progress record of userID.
	ListGuildProgress(ctx context.Context, userID string) ([]*model.Entity, error)
}

// ConcurrencyGuard selects how the read-plan-write cycle handles racing
// writers on the same record.
type ConcurrencyGuard string

const (
	// GuardVersion conditions every write on the version that was read and
	// re-plans on mismatch. Racing clamps cannot overshoot a bound.
	GuardVersion ConcurrencyGuard = "version"
	// GuardNone writes unconditionally. Two writers that both read a value
	// below the bound can each increment and together overshoot it.
	GuardNone ConcurrencyGuard = "none"
)

// ProgressionServiceConfig holds configuration for the progression service
type ProgressionServiceConfig struct {
	Store              ProgressStore
	Guilds             GuildLookup
	Guard              ConcurrencyGuard
	MaxConflictRetries int
	Publisher          events.Publisher
	Logger             *logger.Logger
}

// GuildLookup resolves guild names for display.
type GuildLookup interface {
	GetGuilds(ctx context.Context, ids []string) ([]*model.Guild, error)
}

// ProgressionService applies bounded deltas to characters and guild
// progress records.
type ProgressionService struct {
	store      ProgressStore
	guilds     GuildLookup
	guard      ConcurrencyGuard
	maxRetries int
	publisher  events.Publisher
	log        *logger.Logger
}

// UpdateResult is the outcome of one bounded update.
type UpdateResult struct {
	Entity  *model.Entity
	Clamped []progression.Field
	Created bool
}

// NewProgressionService creates a new progression service
func NewProgressionService(cfg ProgressionServiceConfig) *ProgressionService {
	if cfg.Guard == "" {
		cfg.Guard = GuardVersion
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = 5
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &ProgressionService{
		store:      cfg.Store,
		guilds:     cfg.Guilds,
		guard:      cfg.Guard,
		maxRetries: cfg.MaxConflictRetries,
		publisher:  cfg.Publisher,
		log:        cfg.Logger.With("service", "ProgressionService"),
	}
}

// Update applies deltas to the record at ref. Each field is clamped to its
// bound; clamped fields are written as absolute values and the rest as
// native increments, in one write.
func (s *ProgressionService) Update(ctx context.Context, ref model.EntityRef, deltas progression.Deltas) (*UpdateResult, error) {
	ctx, span := tracing.Start(ctx, tracerName, "progression.Update",
		attribute.String("entity.kind", string(ref.Kind)),
		attribute.String("entity.ref", ref.String()),
		attribute.Int("deltas", len(deltas)),
	)
	defer span.End()

	schema, err := s.validate(ref, deltas)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	current, err := s.store.ReadEntity(ctx, ref)
	if err != nil {
		return nil, tracing.Fail(span, storeUnavailable(err))
	}
	if current == nil {
		return nil, tracing.Fail(span, ErrEntityNotFound)
	}

	result, err := s.apply(ctx, schema, current, deltas)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	span.SetAttributes(attribute.Int("clamped", len(result.Clamped)))
	s.publish(ctx, result)
	return result, nil
}

// FindOrCreate applies deltas to the guild progress record at key, creating
// it when absent. A create that loses a race to a concurrent create is
// retried once as an update. A second collision is reported as
// ErrStoreUnavailable.
func (s *ProgressionService) FindOrCreate(ctx context.Context, key model.EntityRef, deltas progression.Deltas) (*UpdateResult, error) {
	ctx, span := tracing.Start(ctx, tracerName, "progression.FindOrCreate",
		attribute.String("user.id", key.UserID),
		attribute.String("guild.id", key.GuildID),
	)
	defer span.End()

	if !key.IsCompositeKey() {
		return nil, tracing.Fail(span, invalidInput(fmt.Errorf("%w: find-or-create needs a (user, guild) key", model.ErrInvalidRef)))
	}
	schema, err := s.validate(key, deltas)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	result, err := s.findOrCreateOnce(ctx, schema, key, deltas)
	if errors.Is(err, model.ErrUniqueViolation) {
		s.log.Debug("create lost race, retrying as update", "user_id", key.UserID, "guild_id", key.GuildID)
		span.AddEvent("unique violation retry")
		result, err = s.findOrCreateOnce(ctx, schema, key, deltas)
		if errors.Is(err, model.ErrUniqueViolation) {
			err = storeUnavailable(ErrRepeatedUniqueViolation)
		}
	}
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	span.SetAttributes(attribute.Bool("created", result.Created))
	if result.Entity.ID != "" {
		s.publish(ctx, result)
	}
	return result, nil
}

func (s *ProgressionService) findOrCreateOnce(ctx context.Context, schema progression.Schema, key model.EntityRef, deltas progression.Deltas) (*UpdateResult, error) {
	current, err := s.store.ReadEntity(ctx, key)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if current != nil {
		return s.apply(ctx, schema, current, deltas)
	}

	initial, clamped := schema.Initial(deltas)
	if deltas.IsZero() {
		// Nothing to record: the caller sees the values a new record would
		// start with, but no row is created.
		return &UpdateResult{Entity: &model.Entity{
			Kind:    key.Kind,
			UserID:  key.UserID,
			GuildID: key.GuildID,
			Values:  initial,
		}}, nil
	}
	created, err := s.store.CreateEntity(ctx, key, initial)
	if err != nil {
		if errors.Is(err, model.ErrUniqueViolation) {
			return nil, err
		}
		return nil, storeUnavailable(err)
	}
	return &UpdateResult{Entity: created, Clamped: clamped, Created: true}, nil
}

// apply runs the plan-write cycle against a freshly read record.
func (s *ProgressionService) apply(ctx context.Context, schema progression.Schema, current *model.Entity, deltas progression.Deltas) (*UpdateResult, error) {
	for attempt := 0; ; attempt++ {
		plan, err := schema.Plan(current.Values, deltas)
		if err != nil {
			return nil, invalidInput(err)
		}
		if plan.Empty() {
			return &UpdateResult{Entity: current}, nil
		}

		write := model.EntityWrite{Inc: plan.Inc, Set: plan.Set}
		if s.guard == GuardVersion {
			observed := current.Version
			write.ExpectedVersion = &observed
		}

		ref := current.Ref()
		updated, err := s.store.WriteEntity(ctx, ref, write)
		if err != nil {
			return nil, storeUnavailable(err)
		}
		if updated != nil {
			return &UpdateResult{Entity: updated, Clamped: plan.Clamped}, nil
		}
		if s.guard != GuardVersion {
			return nil, ErrEntityNotFound
		}

		// Zero rows under the version guard: the record either vanished or
		// moved on since it was read.
		current, err = s.store.ReadEntity(ctx, ref)
		if err != nil {
			return nil, storeUnavailable(err)
		}
		if current == nil {
			return nil, ErrEntityNotFound
		}
		if attempt >= s.maxRetries {
			return nil, storeUnavailable(ErrWriteConflict)
		}
		s.log.Debug("version conflict, replanning", "ref", ref.String(), "attempt", attempt+1)
	}
}

func (s *ProgressionService) validate(ref model.EntityRef, deltas progression.Deltas) (progression.Schema, error) {
	if err := ref.Validate(); err != nil {
		return progression.Schema{}, invalidInput(err)
	}
	schema, err := progression.SchemaFor(ref.Kind)
	if err != nil {
		return progression.Schema{}, invalidInput(err)
	}
	if err := schema.Validate(deltas); err != nil {
		return progression.Schema{}, invalidInput(err)
	}
	return schema, nil
}

func (s *ProgressionService) publish(ctx context.Context, r *UpdateResult) {
	e := r.Entity
	payload := map[string]any{
		"kind":    e.Kind,
		"id":      e.ID,
		"version": e.Version,
		"created": r.Created,
		"clamped": r.Clamped,
	}
	if e.GuildID != "" {
		payload["guild_id"] = e.GuildID
	}
	if err := s.publisher.Publish(ctx, events.New(events.TypeProgressUpdated, e.UserID, payload)); err != nil {
		s.log.Warn("publish progress event failed", "error", err, "entity", e.ID)
	}
}

// ===== Reads =====

// GetCharacter returns the character of userID.
func (s *ProgressionService) GetCharacter(ctx context.Context, userID string) (*model.Character, error) {
	e, err := s.store.ReadEntity(ctx, model.CharacterRef(userID))
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if e == nil {
		return nil, ErrEntityNotFound
	}
	return e.Character(), nil
}

// UpdateCharacter applies deltas to the character of userID.
func (s *ProgressionService) UpdateCharacter(ctx context.Context, userID string, deltas progression.Deltas) (*model.Character, []progression.Field, error) {
	res, err := s.Update(ctx, model.CharacterRef(userID), deltas)
	if err != nil {
		return nil, nil, err
	}
	return res.Entity.Character(), res.Clamped, nil
}

// ListMyProgress returns every guild progress record of userID with guild
// names attached.
func (s *ProgressionService) ListMyProgress(ctx context.Context, userID string) ([]*model.GuildProgress, error) {
	entities, err := s.store.ListGuildProgress(ctx, userID)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	names := s.guildNames(ctx, entities)
	out := make([]*model.GuildProgress, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.GuildProgress(names[e.GuildID]))
	}
	return out, nil
}

// GetMyProgress returns one guild progress record owned by userID. Records
// owned by someone else are reported as not found.
func (s *ProgressionService) GetMyProgress(ctx context.Context, userID, progressID string) (*model.GuildProgress, error) {
	e, err := s.ownedProgress(ctx, userID, progressID)
	if err != nil {
		return nil, err
	}
	return e.GuildProgress(s.guildNames(ctx, []*model.Entity{e})[e.GuildID]), nil
}

// UpdateMyProgress applies deltas to a guild progress record owned by userID.
func (s *ProgressionService) UpdateMyProgress(ctx context.Context, userID, progressID string, deltas progression.Deltas) (*model.GuildProgress, []progression.Field, error) {
	if _, err := s.ownedProgress(ctx, userID, progressID); err != nil {
		return nil, nil, err
	}
	res, err := s.Update(ctx, model.GuildProgressRef(progressID), deltas)
	if err != nil {
		return nil, nil, err
	}
	e := res.Entity
	return e.GuildProgress(s.guildNames(ctx, []*model.Entity{e})[e.GuildID]), res.Clamped, nil
}

func (s *ProgressionService) ownedProgress(ctx context.Context, userID, progressID string) (*model.Entity, error) {
	if progressID == "" {
		return nil, invalidInput(model.ErrInvalidRef)
	}
	e, err := s.store.ReadEntity(ctx, model.GuildProgressRef(progressID))
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if e == nil || e.UserID != userID {
		return nil, ErrEntityNotFound
	}
	return e, nil
}

// guildNames is best effort: a lookup failure leaves names empty.
func (s *ProgressionService) guildNames(ctx context.Context, entities []*model.Entity) map[string]string {
	names := make(map[string]string)
	if s.guilds == nil || len(entities) == 0 {
		return names
	}
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.GuildID)
	}
	guilds, err := s.guilds.GetGuilds(ctx, ids)
	if err != nil {
		s.log.Warn("guild name lookup failed", "error", err)
		return names
	}
	for _, g := range guilds {
		names[g.ID] = g.Name
	}
	return names
}
