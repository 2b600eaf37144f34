package progression

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFor(t *testing.T) {
	t.Parallel()

	s, err := SchemaFor(KindGuildProgress)
	require.NoError(t, err)
	assert.Equal(t, []Field{FieldExperience}, s.Fields())

	c, err := SchemaFor(KindCharacter)
	require.NoError(t, err)
	assert.Len(t, c.Fields(), 3+len(AttributeFields()))

	_, err = SchemaFor("pet")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSchema_Validate(t *testing.T) {
	t.Parallel()

	s := GuildProgressSchema()

	assert.ErrorIs(t, s.Validate(nil), ErrEmptyDeltas)
	assert.ErrorIs(t, s.Validate(Deltas{}), ErrEmptyDeltas)
	assert.ErrorIs(t, s.Validate(Deltas{FieldMoney: 10}), ErrUnknownField)
	assert.NoError(t, s.Validate(Deltas{FieldExperience: 0}))
}

func TestSchema_Initial_ClampsEachField(t *testing.T) {
	t.Parallel()

	values, clamped := CharacterSchema().Initial(Deltas{
		FieldExperience: 20,
		FieldStrength:   900,
	})

	assert.Equal(t, int64(20), values[FieldExperience])
	assert.Equal(t, MaxAttribute, values[FieldStrength])
	assert.Equal(t, MinLevel, values[FieldLevel], "level starts at its floor")
	assert.Equal(t, int64(0), values[FieldMoney])
	assert.Equal(t, []Field{FieldStrength}, clamped)
}

// ============================================================================
// Plan Tests
// ============================================================================

func TestPlan_UnclampedFieldsIncrement(t *testing.T) {
	t.Parallel()

	plan, err := CharacterSchema().Plan(
		map[Field]int64{FieldExperience: 100, FieldMoney: 5},
		Deltas{FieldExperience: 50, FieldMoney: 10},
	)
	require.NoError(t, err)

	assert.Equal(t, map[Field]int64{FieldExperience: 50, FieldMoney: 10}, plan.Inc)
	assert.Empty(t, plan.Set)
	assert.Empty(t, plan.Clamped)
}

func TestPlan_ClampedFieldBecomesSetAndDropsIncrement(t *testing.T) {
	t.Parallel()

	plan, err := CharacterSchema().Plan(
		map[Field]int64{FieldExperience: 100, FieldStrength: 250},
		Deltas{FieldExperience: 50, FieldStrength: 10},
	)
	require.NoError(t, err)

	assert.Equal(t, map[Field]int64{FieldExperience: 50}, plan.Inc)
	assert.Equal(t, map[Field]int64{FieldStrength: MaxAttribute}, plan.Set)
	assert.Equal(t, []Field{FieldStrength}, plan.Clamped)
	_, both := plan.Inc[FieldStrength]
	assert.False(t, both)
}

func TestPlan_ZeroDeltaIsEmpty(t *testing.T) {
	t.Parallel()

	plan, err := GuildProgressSchema().Plan(map[Field]int64{FieldExperience: 10}, Deltas{FieldExperience: 0})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestDeltas_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Deltas(nil).IsZero())
	assert.True(t, Deltas{FieldExperience: 0, FieldMoney: 0}.IsZero())
	assert.False(t, Deltas{FieldExperience: 0, FieldMoney: -1}.IsZero())
}

func TestPlan_NegativeBelowFloor(t *testing.T) {
	t.Parallel()

	plan, err := CharacterSchema().Plan(map[Field]int64{FieldMoney: 30}, Deltas{FieldMoney: -100})
	require.NoError(t, err)
	assert.Equal(t, map[Field]int64{FieldMoney: 0}, plan.Set)
}

// ============================================================================
// Field Tests
// ============================================================================

func TestParseField(t *testing.T) {
	t.Parallel()

	f, err := ParseField("attributes.wisdom")
	require.NoError(t, err)
	assert.Equal(t, FieldWisdom, f)
	assert.Equal(t, "wisdom", f.Name())

	f, err = ParseAttribute("focus")
	require.NoError(t, err)
	assert.Equal(t, FieldFocus, f)

	_, err = ParseField("wisdom")
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = ParseAttribute("luck")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestDeltas_JSONKeys(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Deltas{FieldExperience: 5, FieldAgility: -1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"experience":5,"attributes.agility":-1}`, string(raw))

	var back Deltas
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, Deltas{FieldExperience: 5, FieldAgility: -1}, back)
}
