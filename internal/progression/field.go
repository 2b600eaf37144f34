package progression

import (
	"fmt"
	"strings"
)

// Field identifies one accumulable numeric field. The set is closed: every
// value a caller can name maps to exactly one Field constant below.
type Field uint8

const (
	FieldExperience Field = iota + 1
	FieldMoney
	FieldLevel

	// Character attributes
	FieldStrength
	FieldStamina
	FieldDexterity
	FieldSpeed
	FieldVitality
	FieldAgility
	FieldIntelligence
	FieldCharisma
	FieldWisdom
	FieldPerception
	FieldFocus
	FieldWillpower
)

const attributePrefix = "attributes."

var fieldNames = map[Field]string{
	FieldExperience:   "experience",
	FieldMoney:        "money",
	FieldLevel:        "level",
	FieldStrength:     "strength",
	FieldStamina:      "stamina",
	FieldDexterity:    "dexterity",
	FieldSpeed:        "speed",
	FieldVitality:     "vitality",
	FieldAgility:      "agility",
	FieldIntelligence: "intelligence",
	FieldCharisma:     "charisma",
	FieldWisdom:       "wisdom",
	FieldPerception:   "perception",
	FieldFocus:        "focus",
	FieldWillpower:    "willpower",
}

var fieldsByPath = func() map[string]Field {
	m := make(map[string]Field, len(fieldNames))
	for f := range fieldNames {
		m[f.Path()] = f
	}
	return m
}()

// Name returns the short field name ("experience", "strength").
func (f Field) Name() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Path returns the dotted path used on the wire and in SurrealDB documents.
// Attributes live under "attributes.".
func (f Field) Path() string {
	if f.IsAttribute() {
		return attributePrefix + f.Name()
	}
	return f.Name()
}

func (f Field) String() string {
	return f.Path()
}

// IsAttribute reports whether f is one of the named character attributes.
func (f Field) IsAttribute() bool {
	return f >= FieldStrength && f <= FieldWillpower
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	_, ok := fieldNames[f]
	return ok
}

// MarshalText lets Field serve as a JSON map key.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownField, uint8(f))
	}
	return []byte(f.Path()), nil
}

func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseField resolves a dotted path such as "experience" or
// "attributes.strength".
func ParseField(path string) (Field, error) {
	if f, ok := fieldsByPath[strings.TrimSpace(path)]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, path)
}

// ParseAttribute resolves a bare attribute name such as "strength".
func ParseAttribute(name string) (Field, error) {
	f, err := ParseField(attributePrefix + strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %q", ErrUnknownField, name)
	}
	return f, nil
}

// AttributeFields returns the attribute fields in declaration order.
func AttributeFields() []Field {
	out := make([]Field, 0, FieldWillpower-FieldStrength+1)
	for f := FieldStrength; f <= FieldWillpower; f++ {
		out = append(out, f)
	}
	return out
}
