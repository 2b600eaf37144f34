package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forgo/questline/api/internal/database"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

// ProgressRepository stores characters and guild progress in SurrealDB.
// Character records are keyed by user id; guild progress records get a
// generated id and a unique (user_id, guild_id) index.
type ProgressRepository struct {
	db database.Database
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.Database) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// ReadEntity returns the record at ref, or nil when it does not exist
func (r *ProgressRepository) ReadEntity(ctx context.Context, ref model.EntityRef) (*model.Entity, error) {
	var (
		query string
		vars  map[string]interface{}
	)
	switch {
	case ref.Kind == progression.KindCharacter:
		query = `SELECT * FROM type::thing("character", $user_id)`
		vars = map[string]interface{}{"user_id": characterKey(ref)}
	case ref.HasID():
		if !hasTable(ref.ID, string(progression.KindGuildProgress)) {
			return nil, nil
		}
		query = `SELECT * FROM type::record($id)`
		vars = map[string]interface{}{"id": ref.ID}
	default:
		query = `SELECT * FROM guild_progress WHERE user_id = $user_id AND guild_id = $guild_id LIMIT 1`
		vars = map[string]interface{}{"user_id": ref.UserID, "guild_id": ref.GuildID}
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return parseEntity(ref.Kind, result)
}

// WriteEntity applies w in one UPDATE statement. Increments use the native
// += operator. It returns nil when the record is absent or, under a version
// guard, has moved on.
func (r *ProgressRepository) WriteEntity(ctx context.Context, ref model.EntityRef, w model.EntityWrite) (*model.Entity, error) {
	target, vars, err := writeTarget(ref)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(w.Inc)+len(w.Set)+2)
	for _, f := range progression.Deltas(w.Inc).Fields() {
		name := "inc_" + f.Name()
		sets = append(sets, fmt.Sprintf("%s += $%s", f.Path(), name))
		vars[name] = w.Inc[f]
	}
	for _, f := range progression.Deltas(w.Set).Fields() {
		name := "set_" + f.Name()
		sets = append(sets, fmt.Sprintf("%s = $%s", f.Path(), name))
		vars[name] = w.Set[f]
	}
	sets = append(sets, "version += 1", "updated_on = time::now()")

	where := ""
	if w.ExpectedVersion != nil {
		where = " WHERE version = $expected_version"
		vars["expected_version"] = *w.ExpectedVersion
	}

	query := fmt.Sprintf(`UPDATE %s SET %s%s RETURN AFTER`, target, strings.Join(sets, ", "), where)

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to write %s: %w", ref, err)
	}
	return parseEntity(ref.Kind, result)
}

// CreateEntity inserts a record with the given starting values
func (r *ProgressRepository) CreateEntity(ctx context.Context, ref model.EntityRef, initial map[progression.Field]int64) (*model.Entity, error) {
	schema, err := progression.SchemaFor(ref.Kind)
	if err != nil {
		return nil, err
	}

	var target string
	vars := map[string]interface{}{}
	sets := []string{"user_id = $user_id"}
	switch ref.Kind {
	case progression.KindCharacter:
		target = `type::thing("character", $user_id)`
		vars["user_id"] = characterKey(ref)
	default:
		target = "guild_progress"
		vars["user_id"] = ref.UserID
		vars["guild_id"] = ref.GuildID
		sets = append(sets, "guild_id = $guild_id")
	}

	attributes := map[string]interface{}{}
	for _, f := range schema.Fields() {
		if f.IsAttribute() {
			attributes[f.Name()] = initial[f]
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%s", f.Name(), f.Name()))
		vars[f.Name()] = initial[f]
	}
	if len(attributes) > 0 {
		sets = append(sets, "attributes = $attributes")
		vars["attributes"] = attributes
	}
	sets = append(sets, "version = 1", "created_on = time::now()", "updated_on = time::now()")

	query := fmt.Sprintf(`CREATE %s SET %s`, target, strings.Join(sets, ", "))

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %s", model.ErrUniqueViolation, ref)
		}
		return nil, fmt.Errorf("failed to create %s: %w", ref, err)
	}
	return parseEntity(ref.Kind, result)
}

// ListGuildProgress returns the guild progress records of userID, oldest first
func (r *ProgressRepository) ListGuildProgress(ctx context.Context, userID string) ([]*model.Entity, error) {
	query := `SELECT * FROM guild_progress WHERE user_id = $user_id ORDER BY created_on ASC`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list guild progress: %w", err)
	}

	rows := extractQueryResults(result)
	entities := make([]*model.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := parseEntity(progression.KindGuildProgress, row)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// ClampOutOfBounds rewrites every value of field outside b to the nearest
// end of b. Unset values are left alone.
func (r *ProgressRepository) ClampOutOfBounds(ctx context.Context, kind progression.Kind, field progression.Field, b progression.Bound) (int64, error) {
	if _, err := progression.SchemaFor(kind); err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		UPDATE %[1]s SET
			%[2]s = IF %[2]s < $min THEN $min ELSE $max END,
			version += 1,
			updated_on = time::now()
		WHERE %[2]s != NONE AND (%[2]s < $min OR %[2]s > $max)
		RETURN id
	`, kind, field.Path())

	result, err := r.db.Query(ctx, query, map[string]interface{}{"min": b.Min, "max": b.Max})
	if err != nil {
		return 0, fmt.Errorf("failed to clamp %s.%s: %w", kind, field.Path(), err)
	}
	return int64(len(extractQueryResults(result))), nil
}

// characterKey is the user id a character record is keyed by.
func characterKey(ref model.EntityRef) string {
	if ref.UserID != "" {
		return ref.UserID
	}
	return ref.ID
}

func writeTarget(ref model.EntityRef) (string, map[string]interface{}, error) {
	switch ref.Kind {
	case progression.KindCharacter:
		return `type::thing("character", $user_id)`, map[string]interface{}{"user_id": characterKey(ref)}, nil
	case progression.KindGuildProgress:
		if !ref.HasID() {
			return "", nil, fmt.Errorf("%w: writes address guild progress by id", model.ErrInvalidRef)
		}
		return `type::record($id)`, map[string]interface{}{"id": ref.ID}, nil
	}
	return "", nil, fmt.Errorf("%w: kind %q", model.ErrInvalidRef, ref.Kind)
}

func parseEntity(kind progression.Kind, result interface{}) (*model.Entity, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected %s result format", kind)
	}
	schema, err := progression.SchemaFor(kind)
	if err != nil {
		return nil, err
	}

	e := &model.Entity{
		Kind:      kind,
		UserID:    getString(data, "user_id"),
		Values:    make(map[progression.Field]int64),
		Version:   getInt64(data, "version"),
		CreatedOn: parseTime(data["created_on"]),
		UpdatedOn: parseTime(data["updated_on"]),
	}
	if kind == progression.KindCharacter {
		e.ID = e.UserID
	} else {
		e.ID = convertSurrealID(data["id"])
		e.GuildID = getString(data, "guild_id")
	}

	attributes := getMap(data, "attributes")
	for _, f := range schema.Fields() {
		src := data
		if f.IsAttribute() {
			src = attributes
		}
		if n, ok := toInt64(src[f.Name()]); ok {
			e.Values[f] = n
		}
	}
	return e, nil
}
