package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

// row is implemented by the two accumulable row types.
type row interface {
	fields() map[progression.Field]*int64
}

// ReadEntity returns the record at ref, or nil when it does not exist.
func (s *Store) ReadEntity(ctx context.Context, ref model.EntityRef) (*model.Entity, error) {
	db := s.db.WithContext(ctx)
	switch ref.Kind {
	case progression.KindCharacter:
		var r CharacterRow
		if err := db.Where("user_id = ?", characterKey(ref)).Take(&r).Error; err != nil {
			return nil, notFoundAsNil(err)
		}
		return characterEntity(&r), nil
	case progression.KindGuildProgress:
		var r GuildProgressRow
		q := db
		if ref.HasID() {
			q = q.Where("id = ?", ref.ID)
		} else {
			q = q.Where("user_id = ? AND guild_id = ?", ref.UserID, ref.GuildID)
		}
		if err := q.Take(&r).Error; err != nil {
			return nil, notFoundAsNil(err)
		}
		return guildProgressEntity(&r), nil
	}
	return nil, fmt.Errorf("%w: kind %q", model.ErrInvalidRef, ref.Kind)
}

// WriteEntity applies w in one UPDATE and reads the row back in the same
// transaction. It returns nil when no row matched the key and version.
func (s *Store) WriteEntity(ctx context.Context, ref model.EntityRef, w model.EntityWrite) (*model.Entity, error) {
	target, where, key, err := writeTarget(ref)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"version":    gorm.Expr("version + ?", 1),
		"updated_at": time.Now().UTC(),
	}
	for f, d := range w.Inc {
		col := f.Name()
		updates[col] = gorm.Expr(col+" + ?", d)
	}
	for f, v := range w.Set {
		updates[f.Name()] = v
	}

	var written *model.Entity
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(target).Where(where, key)
		if w.ExpectedVersion != nil {
			q = q.Where("version = ?", *w.ExpectedVersion)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		fresh := newRow(ref.Kind)
		if err := tx.Where(where, key).Take(fresh).Error; err != nil {
			return err
		}
		written = toEntity(fresh)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", ref, err)
	}
	return written, nil
}

// CreateEntity inserts a record with the given starting values.
func (s *Store) CreateEntity(ctx context.Context, ref model.EntityRef, initial map[progression.Field]int64) (*model.Entity, error) {
	now := time.Now().UTC()

	var r row
	switch ref.Kind {
	case progression.KindCharacter:
		r = &CharacterRow{UserID: characterKey(ref), Level: progression.MinLevel, Version: 1, CreatedAt: now, UpdatedAt: now}
	case progression.KindGuildProgress:
		r = &GuildProgressRow{UserID: ref.UserID, GuildID: ref.GuildID, Version: 1, CreatedAt: now, UpdatedAt: now}
	default:
		return nil, fmt.Errorf("%w: kind %q", model.ErrInvalidRef, ref.Kind)
	}

	cols := r.fields()
	for f, v := range initial {
		if p, ok := cols[f]; ok {
			*p = v
		}
	}

	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", model.ErrUniqueViolation, ref)
		}
		return nil, fmt.Errorf("failed to create %s: %w", ref, err)
	}
	return toEntity(r), nil
}

// ListGuildProgress returns the guild progress records of userID, oldest first.
func (s *Store) ListGuildProgress(ctx context.Context, userID string) ([]*model.Entity, error) {
	var rows []GuildProgressRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list guild progress: %w", err)
	}

	out := make([]*model.Entity, 0, len(rows))
	for i := range rows {
		out = append(out, guildProgressEntity(&rows[i]))
	}
	return out, nil
}

// ClampOutOfBounds rewrites every value of field outside b to the nearest
// end of b and bumps the version of each row it touches.
func (s *Store) ClampOutOfBounds(ctx context.Context, kind progression.Kind, field progression.Field, b progression.Bound) (int64, error) {
	schema, err := progression.SchemaFor(kind)
	if err != nil {
		return 0, err
	}
	if _, ok := schema.Bound(field); !ok {
		return 0, fmt.Errorf("%w: %s has no field %s", progression.ErrUnknownField, kind, field)
	}

	col := field.Name()
	res := s.db.WithContext(ctx).Model(newRow(kind)).
		Where(col+" < ? OR "+col+" > ?", b.Min, b.Max).
		Updates(map[string]any{
			col:          gorm.Expr("CASE WHEN "+col+" < ? THEN ? ELSE ? END", b.Min, b.Min, b.Max),
			"version":    gorm.Expr("version + ?", 1),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clamp %s.%s: %w", kind, col, res.Error)
	}
	return res.RowsAffected, nil
}

func characterKey(ref model.EntityRef) string {
	if ref.UserID != "" {
		return ref.UserID
	}
	return ref.ID
}

// writeTarget returns an empty row of ref's kind and the key condition that
// addresses it.
func writeTarget(ref model.EntityRef) (row, string, string, error) {
	switch ref.Kind {
	case progression.KindCharacter:
		return &CharacterRow{}, "user_id = ?", characterKey(ref), nil
	case progression.KindGuildProgress:
		if !ref.HasID() {
			return nil, "", "", fmt.Errorf("%w: writes address guild progress by id", model.ErrInvalidRef)
		}
		return &GuildProgressRow{}, "id = ?", ref.ID, nil
	}
	return nil, "", "", fmt.Errorf("%w: kind %q", model.ErrInvalidRef, ref.Kind)
}

func newRow(kind progression.Kind) row {
	if kind == progression.KindCharacter {
		return &CharacterRow{}
	}
	return &GuildProgressRow{}
}

func toEntity(r row) *model.Entity {
	switch v := r.(type) {
	case *CharacterRow:
		return characterEntity(v)
	case *GuildProgressRow:
		return guildProgressEntity(v)
	}
	return nil
}

func characterEntity(r *CharacterRow) *model.Entity {
	return &model.Entity{
		ID:        r.UserID,
		Kind:      progression.KindCharacter,
		UserID:    r.UserID,
		Values:    values(r),
		Version:   r.Version,
		CreatedOn: r.CreatedAt,
		UpdatedOn: r.UpdatedAt,
	}
}

func guildProgressEntity(r *GuildProgressRow) *model.Entity {
	return &model.Entity{
		ID:        r.ID,
		Kind:      progression.KindGuildProgress,
		UserID:    r.UserID,
		GuildID:   r.GuildID,
		Values:    values(r),
		Version:   r.Version,
		CreatedOn: r.CreatedAt,
		UpdatedOn: r.UpdatedAt,
	}
}

func values(r row) map[progression.Field]int64 {
	cols := r.fields()
	out := make(map[progression.Field]int64, len(cols))
	for f, p := range cols {
		out[f] = *p
	}
	return out
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
