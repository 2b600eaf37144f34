// Package fixtures provides test data factories for integration testing.
//
// Each factory method creates entities with sensible defaults while allowing
// customization via option functions. Factories work against any store that
// can create entities and directory records, so the SurrealDB and SQL stores
// share them.
//
// Usage:
//
//	f := fixtures.New(progressStore, directory)
//	userID := fixtures.NewUserID()
//	f.CreateCharacter(t, userID)
//	guilds := f.CreateGuilds(t, 3)
//	quest := f.CreateQuest(t, guilds)
//	contract := f.CreateContract(t, userID, quest)
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

// EntityCreator inserts accumulable records
type EntityCreator interface {
	CreateEntity(ctx context.Context, ref model.EntityRef, initial map[progression.Field]int64) (*model.Entity, error)
}

// DirectorySeeder inserts guilds, quests and contracts
type DirectorySeeder interface {
	CreateGuild(ctx context.Context, guild *model.Guild) error
	CreateQuest(ctx context.Context, quest *model.Quest) error
	CreateContract(ctx context.Context, contract *model.Contract) error
}

// Factory creates test entities in a store
type Factory struct {
	entities  EntityCreator
	directory DirectorySeeder
}

// New creates a new fixture factory
func New(entities EntityCreator, directory DirectorySeeder) *Factory {
	return &Factory{entities: entities, directory: directory}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewUserID returns a user id unique to this run
func NewUserID() string {
	return "user:" + randomID()
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// Character Fixtures
// ============================================================================

// CharacterOpts customizes character creation
type CharacterOpts struct {
	Values map[progression.Field]int64
}

// WithValue sets a starting value on the character
func WithValue(f progression.Field, v int64) func(*CharacterOpts) {
	return func(o *CharacterOpts) { o.Values[f] = v }
}

// CreateCharacter creates a level 1 character for userID
func (f *Factory) CreateCharacter(t *testing.T, userID string, opts ...func(*CharacterOpts)) *model.Entity {
	t.Helper()

	o := &CharacterOpts{Values: map[progression.Field]int64{progression.FieldLevel: progression.MinLevel}}
	for _, fn := range opts {
		fn(o)
	}

	e, err := f.entities.CreateEntity(ctx(t), model.CharacterRef(userID), o.Values)
	if err != nil {
		t.Fatalf("fixtures: create character: %v", err)
	}
	return e
}

// CreateGuildProgress creates a guild progress record with xp experience
func (f *Factory) CreateGuildProgress(t *testing.T, userID, guildID string, xp int64) *model.Entity {
	t.Helper()

	e, err := f.entities.CreateEntity(ctx(t), model.GuildProgressKey(userID, guildID),
		map[progression.Field]int64{progression.FieldExperience: xp})
	if err != nil {
		t.Fatalf("fixtures: create guild progress: %v", err)
	}
	return e
}

// ============================================================================
// Directory Fixtures
// ============================================================================

// CreateGuilds creates n guilds with distinct names
func (f *Factory) CreateGuilds(t *testing.T, n int) []*model.Guild {
	t.Helper()

	guilds := make([]*model.Guild, 0, n)
	for i := range n {
		g := &model.Guild{Name: fmt.Sprintf("Guild %d %s", i+1, randomID())}
		if err := f.directory.CreateGuild(ctx(t), g); err != nil {
			t.Fatalf("fixtures: create guild: %v", err)
		}
		guilds = append(guilds, g)
	}
	return guilds
}

// QuestOpts customizes quest creation
type QuestOpts struct {
	Title  string
	Reward model.Reward
}

// WithReward sets the quest reward
func WithReward(r model.Reward) func(*QuestOpts) {
	return func(o *QuestOpts) { o.Reward = r }
}

// CreateQuest creates a quest belonging to guilds, in order
func (f *Factory) CreateQuest(t *testing.T, guilds []*model.Guild, opts ...func(*QuestOpts)) *model.Quest {
	t.Helper()

	o := &QuestOpts{
		Title:  fmt.Sprintf("Quest %s", randomID()),
		Reward: model.Reward{Money: 1000, Experience: 250},
	}
	for _, fn := range opts {
		fn(o)
	}

	q := &model.Quest{Title: o.Title, Reward: o.Reward}
	for _, g := range guilds {
		q.GuildIDs = append(q.GuildIDs, g.ID)
	}
	if err := f.directory.CreateQuest(ctx(t), q); err != nil {
		t.Fatalf("fixtures: create quest: %v", err)
	}
	return q
}

// CreateContract creates an active contract for userID on quest
func (f *Factory) CreateContract(t *testing.T, userID string, quest *model.Quest) *model.Contract {
	t.Helper()

	c := &model.Contract{QuestID: quest.ID, UserID: userID, Status: model.ContractActive}
	if err := f.directory.CreateContract(ctx(t), c); err != nil {
		t.Fatalf("fixtures: create contract: %v", err)
	}
	return c
}
