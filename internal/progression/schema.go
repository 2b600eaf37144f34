package progression

import (
	"fmt"
	"sort"
)

// Kind names an entity variant that carries accumulable fields.
type Kind string

const (
	KindCharacter     Kind = "character"
	KindGuildProgress Kind = "guild_progress"
)

// Game-design limits
const (
	MaxCharacterExperience int64 = 999_999_999
	MaxGuildExperience     int64 = 30_225_276
	MinLevel               int64 = 1
	MaxLevel               int64 = 200
	MaxAttribute           int64 = 255
)

// Deltas maps fields to signed amounts. A zero amount is a no-op.
type Deltas map[Field]int64

// Fields returns the fields of d in ascending order.
func (d Deltas) Fields() []Field {
	out := make([]Field, 0, len(d))
	for f := range d {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsZero reports whether applying d would change nothing.
func (d Deltas) IsZero() bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}

// Schema is the static bound table for one entity kind.
type Schema struct {
	kind   Kind
	order  []Field
	bounds map[Field]Bound
}

type fieldBound struct {
	field Field
	bound Bound
}

func newSchema(kind Kind, entries ...fieldBound) Schema {
	s := Schema{kind: kind, bounds: make(map[Field]Bound, len(entries))}
	for _, e := range entries {
		s.order = append(s.order, e.field)
		s.bounds[e.field] = e.bound
	}
	return s
}

var (
	characterSchema = func() Schema {
		entries := []fieldBound{
			{FieldExperience, mustBound(0, MaxCharacterExperience)},
			{FieldMoney, mustBound(0, Unbounded)},
			{FieldLevel, mustBound(MinLevel, MaxLevel)},
		}
		for _, f := range AttributeFields() {
			entries = append(entries, fieldBound{f, mustBound(0, MaxAttribute)})
		}
		return newSchema(KindCharacter, entries...)
	}()

	guildProgressSchema = newSchema(KindGuildProgress,
		fieldBound{FieldExperience, mustBound(0, MaxGuildExperience)},
	)
)

// SchemaFor returns the bound table for kind.
func SchemaFor(kind Kind) (Schema, error) {
	switch kind {
	case KindCharacter:
		return characterSchema, nil
	case KindGuildProgress:
		return guildProgressSchema, nil
	default:
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// CharacterSchema returns the bound table for user characters.
func CharacterSchema() Schema { return characterSchema }

// GuildProgressSchema returns the bound table for guild progress records.
func GuildProgressSchema() Schema { return guildProgressSchema }

func (s Schema) Kind() Kind { return s.kind }

// Fields lists the schema's fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.order))
	copy(out, s.order)
	return out
}

// Bound returns the bound registered for f.
func (s Schema) Bound(f Field) (Bound, bool) {
	b, ok := s.bounds[f]
	return b, ok
}

// Validate rejects an empty delta set and fields the schema does not bound.
func (s Schema) Validate(d Deltas) error {
	if len(d) == 0 {
		return ErrEmptyDeltas
	}
	for _, f := range d.Fields() {
		if _, ok := s.bounds[f]; !ok {
			return fmt.Errorf("%w: %s has no bound on %s", ErrUnknownField, f, s.kind)
		}
	}
	return nil
}

// Initial returns starting values for a new record: every schema field set
// to clamp(0 + delta). Fields without a delta start at clamp(0).
func (s Schema) Initial(d Deltas) (map[Field]int64, []Field) {
	values := make(map[Field]int64, len(s.order))
	var clamped []Field
	for _, f := range s.order {
		v, c := Apply(0, d[f], s.bounds[f])
		values[f] = v
		if c && d[f] != 0 {
			clamped = append(clamped, f)
		}
	}
	return values, clamped
}
