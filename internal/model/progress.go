package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/forgo/questline/api/internal/progression"
)

// ErrUniqueViolation is returned by stores when a create collides with an
// existing (user, guild) record.
var ErrUniqueViolation = errors.New("unique constraint violation")

// ErrInvalidRef is returned for refs that cannot address a record.
var ErrInvalidRef = errors.New("invalid entity reference")

// EntityRef addresses one accumulable record. Characters are keyed by user
// id. Guild progress is addressed either by its own ID or by the
// (UserID, GuildID) pair.
type EntityRef struct {
	Kind    progression.Kind
	ID      string
	UserID  string
	GuildID string
}

// CharacterRef addresses the character of userID.
func CharacterRef(userID string) EntityRef {
	return EntityRef{Kind: progression.KindCharacter, ID: userID, UserID: userID}
}

// GuildProgressRef addresses a guild progress record by id.
func GuildProgressRef(id string) EntityRef {
	return EntityRef{Kind: progression.KindGuildProgress, ID: id}
}

// GuildProgressKey addresses a guild progress record by its composite key.
func GuildProgressKey(userID, guildID string) EntityRef {
	return EntityRef{Kind: progression.KindGuildProgress, UserID: userID, GuildID: guildID}
}

// HasID reports whether the ref names a record id directly.
func (r EntityRef) HasID() bool {
	return r.ID != ""
}

// IsCompositeKey reports whether the ref is a (user, guild) lookup.
func (r EntityRef) IsCompositeKey() bool {
	return r.Kind == progression.KindGuildProgress && r.ID == "" && r.UserID != "" && r.GuildID != ""
}

// Validate checks that the ref can address a record of its kind.
func (r EntityRef) Validate() error {
	switch r.Kind {
	case progression.KindCharacter:
		if r.ID == "" {
			return fmt.Errorf("%w: character ref needs a user id", ErrInvalidRef)
		}
	case progression.KindGuildProgress:
		if r.ID == "" && (r.UserID == "" || r.GuildID == "") {
			return fmt.Errorf("%w: guild progress ref needs an id or a user and guild", ErrInvalidRef)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidRef, r.Kind)
	}
	return nil
}

func (r EntityRef) String() string {
	if r.HasID() {
		return fmt.Sprintf("%s:%s", r.Kind, r.ID)
	}
	return fmt.Sprintf("%s:(%s,%s)", r.Kind, r.UserID, r.GuildID)
}

// Entity is the storage-neutral form of a record with accumulable fields.
type Entity struct {
	ID        string
	Kind      progression.Kind
	UserID    string
	GuildID   string
	Values    map[progression.Field]int64
	Version   int64
	CreatedOn time.Time
	UpdatedOn time.Time
}

// Ref returns an id-based ref to e.
func (e *Entity) Ref() EntityRef {
	return EntityRef{Kind: e.Kind, ID: e.ID, UserID: e.UserID, GuildID: e.GuildID}
}

// Value returns the stored value of f, or zero when unset.
func (e *Entity) Value(f progression.Field) int64 {
	if e == nil || e.Values == nil {
		return 0
	}
	return e.Values[f]
}

// EntityWrite is one combined store write. Inc fields use the store's native
// increment, Set fields are written as absolute values. When ExpectedVersion
// is set the write only matches a record still at that version.
type EntityWrite struct {
	Inc             map[progression.Field]int64
	Set             map[progression.Field]int64
	ExpectedVersion *int64
}

// Character is the API view of a user's character.
type Character struct {
	UserID     string           `json:"user_id"`
	Experience int64            `json:"experience"`
	Money      int64            `json:"money"`
	Level      int64            `json:"level"`
	Attributes map[string]int64 `json:"attributes"`
	Version    int64            `json:"version"`
	UpdatedOn  time.Time        `json:"updated_on"`
}

// GuildRef is the minimal guild identity attached to progress views.
type GuildRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// GuildProgress is the API view of one (user, guild) progress record.
type GuildProgress struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Guild      GuildRef  `json:"guild"`
	Experience int64     `json:"experience"`
	Version    int64     `json:"version"`
	CreatedOn  time.Time `json:"created_on"`
	UpdatedOn  time.Time `json:"updated_on"`
}

// Character converts a character entity into its view.
func (e *Entity) Character() *Character {
	attrs := make(map[string]int64, len(progression.AttributeFields()))
	for _, f := range progression.AttributeFields() {
		attrs[f.Name()] = e.Value(f)
	}
	return &Character{
		UserID:     e.UserID,
		Experience: e.Value(progression.FieldExperience),
		Money:      e.Value(progression.FieldMoney),
		Level:      e.Value(progression.FieldLevel),
		Attributes: attrs,
		Version:    e.Version,
		UpdatedOn:  e.UpdatedOn,
	}
}

// GuildProgress converts a guild progress entity into its view.
func (e *Entity) GuildProgress(guildName string) *GuildProgress {
	return &GuildProgress{
		ID:         e.ID,
		UserID:     e.UserID,
		Guild:      GuildRef{ID: e.GuildID, Name: guildName},
		Experience: e.Value(progression.FieldExperience),
		Version:    e.Version,
		CreatedOn:  e.CreatedOn,
		UpdatedOn:  e.UpdatedOn,
	}
}
