package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/questline/api/internal/events"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

func newTestProgressionService(store ProgressStore, opts ...func(*ProgressionServiceConfig)) *ProgressionService {
	cfg := ProgressionServiceConfig{Store: store}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewProgressionService(cfg)
}

func seedCharacter(s *memStore, userID string, values map[progression.Field]int64) {
	s.seed(&model.Entity{
		ID:     userID,
		Kind:   progression.KindCharacter,
		UserID: userID,
		Values: values,
	})
}

func seedGuildProgress(s *memStore, id, userID, guildID string, xp int64) {
	s.seed(&model.Entity{
		ID:      id,
		Kind:    progression.KindGuildProgress,
		UserID:  userID,
		GuildID: guildID,
		Values:  map[progression.Field]int64{progression.FieldExperience: xp},
	})
}

// ============================================================================
// Update
// ============================================================================

func TestProgressionService_Update_InRangeRoundTrip(t *testing.T) {
	store := newMemStore()
	seedCharacter(store, "u1", map[progression.Field]int64{progression.FieldLevel: 1})
	pub := &recordingPublisher{}
	svc := newTestProgressionService(store, func(c *ProgressionServiceConfig) { c.Publisher = pub })

	res, err := svc.Update(context.Background(), model.CharacterRef("u1"),
		progression.Deltas{progression.FieldExperience: 50})
	require.NoError(t, err)

	assert.Equal(t, int64(50), res.Entity.Value(progression.FieldExperience))
	assert.Empty(t, res.Clamped)
	assert.Equal(t, map[progression.Field]int64{progression.FieldExperience: 50}, store.lastWrite.Inc)
	assert.Empty(t, store.lastWrite.Set)

	stored := store.get("u1")
	assert.Equal(t, int64(50), stored.Value(progression.FieldExperience))
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, []string{events.TypeProgressUpdated}, pub.types())
}

func TestProgressionService_Update_ClampsAtCeiling(t *testing.T) {
	store := newMemStore()
	ceiling := progression.MaxGuildExperience
	seedGuildProgress(store, "gp1", "u1", "g1", ceiling-10)
	svc := newTestProgressionService(store)

	res, err := svc.Update(context.Background(), model.GuildProgressRef("gp1"),
		progression.Deltas{progression.FieldExperience: 50})
	require.NoError(t, err)

	assert.Equal(t, ceiling, res.Entity.Value(progression.FieldExperience))
	assert.Equal(t, []progression.Field{progression.FieldExperience}, res.Clamped)
	assert.Empty(t, store.lastWrite.Inc, "a clamped field must not also be incremented")
	assert.Equal(t, ceiling, store.lastWrite.Set[progression.FieldExperience])
}

func TestProgressionService_Update_ClampsAtFloor(t *testing.T) {
	store := newMemStore()
	seedCharacter(store, "u1", map[progression.Field]int64{
		progression.FieldMoney: 30,
		progression.FieldLevel: 3,
	})
	svc := newTestProgressionService(store)

	res, err := svc.Update(context.Background(), model.CharacterRef("u1"), progression.Deltas{
		progression.FieldMoney: -100,
		progression.FieldLevel: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Entity.Value(progression.FieldMoney))
	assert.Equal(t, int64(4), res.Entity.Value(progression.FieldLevel))
	assert.Equal(t, []progression.Field{progression.FieldMoney}, res.Clamped)
	assert.Equal(t, map[progression.Field]int64{progression.FieldLevel: 1}, store.lastWrite.Inc)
	assert.Equal(t, map[progression.Field]int64{progression.FieldMoney: 0}, store.lastWrite.Set)
}

func TestProgressionService_Update_ZeroDeltaWritesNothing(t *testing.T) {
	store := newMemStore()
	seedCharacter(store, "u1", map[progression.Field]int64{progression.FieldExperience: 7})
	svc := newTestProgressionService(store)

	res, err := svc.Update(context.Background(), model.CharacterRef("u1"),
		progression.Deltas{progression.FieldExperience: 0})
	require.NoError(t, err)

	assert.Equal(t, int64(7), res.Entity.Value(progression.FieldExperience))
	assert.Equal(t, int32(0), store.writes.Load())
	assert.Equal(t, int64(1), store.get("u1").Version)
}

func TestProgressionService_Update_NotFound(t *testing.T) {
	svc := newTestProgressionService(newMemStore())

	_, err := svc.Update(context.Background(), model.CharacterRef("ghost"),
		progression.Deltas{progression.FieldExperience: 1})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestProgressionService_Update_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		ref    model.EntityRef
		deltas progression.Deltas
	}{
		{"empty deltas", model.CharacterRef("u1"), progression.Deltas{}},
		{"field not bounded on kind", model.GuildProgressRef("gp1"), progression.Deltas{progression.FieldMoney: 5}},
		{"unknown kind", model.EntityRef{Kind: "dragon", ID: "d1"}, progression.Deltas{progression.FieldExperience: 1}},
		{"missing id", model.CharacterRef(""), progression.Deltas{progression.FieldExperience: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			store := &mockProgressStore{
				readEntityFunc: func(context.Context, model.EntityRef) (*model.Entity, error) {
					called = true
					return nil, nil
				},
			}
			svc := newTestProgressionService(store)

			_, err := svc.Update(context.Background(), tt.ref, tt.deltas)

			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.False(t, called, "invalid input must not reach the store")
		})
	}
}

func TestProgressionService_Update_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	store := &mockProgressStore{
		readEntityFunc: func(context.Context, model.EntityRef) (*model.Entity, error) {
			return nil, boom
		},
	}
	svc := newTestProgressionService(store)

	_, err := svc.Update(context.Background(), model.CharacterRef("u1"),
		progression.Deltas{progression.FieldExperience: 1})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestProgressionService_Update_PublishFailureIsIgnored(t *testing.T) {
	store := newMemStore()
	seedCharacter(store, "u1", nil)
	pub := &recordingPublisher{err: errors.New("bus down")}
	svc := newTestProgressionService(store, func(c *ProgressionServiceConfig) { c.Publisher = pub })

	_, err := svc.Update(context.Background(), model.CharacterRef("u1"),
		progression.Deltas{progression.FieldMoney: 10})

	assert.NoError(t, err)
}

// ============================================================================
// Concurrency Guard
// ============================================================================

// Two writers both read level 195 and each add 4 against a ceiling of 200.
func racingLevelUps(t *testing.T, guard ConcurrencyGuard) *model.Entity {
	t.Helper()

	store := newMemStore()
	seedCharacter(store, "u1", map[progression.Field]int64{progression.FieldLevel: 195})
	wait := barrier(2)
	store.afterRead = func(model.EntityRef) { wait() }
	svc := newTestProgressionService(store, func(c *ProgressionServiceConfig) { c.Guard = guard })

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Update(context.Background(), model.CharacterRef("u1"),
				progression.Deltas{progression.FieldLevel: 4})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	return store.get("u1")
}

func TestProgressionService_Update_VersionGuardNeverOvershoots(t *testing.T) {
	got := racingLevelUps(t, GuardVersion)

	assert.Equal(t, progression.MaxLevel, got.Value(progression.FieldLevel))
}

func TestProgressionService_Update_UnguardedWritersOvershoot(t *testing.T) {
	got := racingLevelUps(t, GuardNone)

	assert.Equal(t, int64(203), got.Value(progression.FieldLevel))
}

func TestProgressionService_Update_ConflictRetriesExhausted(t *testing.T) {
	var writes int
	store := &mockProgressStore{
		readEntityFunc: func(context.Context, model.EntityRef) (*model.Entity, error) {
			return &model.Entity{ID: "u1", Kind: progression.KindCharacter, UserID: "u1", Version: 3}, nil
		},
		writeEntityFunc: func(_ context.Context, _ model.EntityRef, w model.EntityWrite) (*model.Entity, error) {
			writes++
			require.NotNil(t, w.ExpectedVersion)
			assert.Equal(t, int64(3), *w.ExpectedVersion)
			return nil, nil
		},
	}
	svc := newTestProgressionService(store, func(c *ProgressionServiceConfig) { c.MaxConflictRetries = 2 })

	_, err := svc.Update(context.Background(), model.CharacterRef("u1"),
		progression.Deltas{progression.FieldExperience: 1})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, ErrWriteConflict)
	assert.Equal(t, 3, writes)
}

func TestProgressionService_Update_RecordDeletedDuringConflict(t *testing.T) {
	reads := 0
	store := &mockProgressStore{
		readEntityFunc: func(context.Context, model.EntityRef) (*model.Entity, error) {
			reads++
			if reads > 1 {
				return nil, nil
			}
			return &model.Entity{ID: "u1", Kind: progression.KindCharacter, UserID: "u1", Version: 1}, nil
		},
	}
	svc := newTestProgressionService(store)

	_, err := svc.Update(context.Background(), model.CharacterRef("u1"),
		progression.Deltas{progression.FieldExperience: 1})

	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestProgressionService_Update_UnguardedZeroRowsIsNotFound(t *testing.T) {
	store := &mockProgressStore{
		readEntityFunc: func(context.Context, model.EntityRef) (*model.Entity, error) {
			return &model.Entity{ID: "u1", Kind: progression.KindCharacter, UserID: "u1", Version: 1}, nil
		},
		writeEntityFunc: func(_ context.Context, _ model.EntityRef, w model.EntityWrite) (*model.Entity, error) {
			assert.Nil(t, w.ExpectedVersion)
			return nil, nil
		},
	}
	svc := newTestProgressionService(store, func(c *ProgressionServiceConfig) { c.Guard = GuardNone })

	_, err := svc.Update(context.Background(), model.CharacterRef("u1"),
		progression.Deltas{progression.FieldExperience: 1})

	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// FindOrCreate
// ============================================================================

func TestProgressionService_FindOrCreate_CreatesWithClampedInitial(t *testing.T) {
	store := newMemStore()
	svc := newTestProgressionService(store)

	res, err := svc.FindOrCreate(context.Background(), model.GuildProgressKey("u1", "g1"),
		progression.Deltas{progression.FieldExperience: -30})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, int64(0), res.Entity.Value(progression.FieldExperience))
	assert.Equal(t, []progression.Field{progression.FieldExperience}, res.Clamped)
	assert.NotNil(t, store.byKey("u1", "g1"))
}

func TestProgressionService_FindOrCreate_ZeroDeltaCreatesNothing(t *testing.T) {
	store := newMemStore()
	svc := newTestProgressionService(store)

	res, err := svc.FindOrCreate(context.Background(), model.GuildProgressKey("u1", "g1"),
		progression.Deltas{progression.FieldExperience: 0})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Empty(t, res.Entity.ID)
	assert.Equal(t, "g1", res.Entity.GuildID)
	assert.Equal(t, int64(0), res.Entity.Value(progression.FieldExperience))
	assert.Equal(t, int32(0), store.creates.Load())
	assert.Nil(t, store.byKey("u1", "g1"))
}

func TestProgressionService_FindOrCreate_UpdatesExisting(t *testing.T) {
	store := newMemStore()
	seedGuildProgress(store, "gp1", "u1", "g1", 100)
	svc := newTestProgressionService(store)

	res, err := svc.FindOrCreate(context.Background(), model.GuildProgressKey("u1", "g1"),
		progression.Deltas{progression.FieldExperience: 25})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, "gp1", res.Entity.ID)
	assert.Equal(t, int64(125), res.Entity.Value(progression.FieldExperience))
	assert.Equal(t, int32(0), store.creates.Load())
}

func TestProgressionService_FindOrCreate_ConcurrentCreatesBothApply(t *testing.T) {
	store := newMemStore()
	wait := barrier(2)
	store.afterRead = func(model.EntityRef) { wait() }
	svc := newTestProgressionService(store)

	var wg sync.WaitGroup
	results := make([]*UpdateResult, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.FindOrCreate(context.Background(), model.GuildProgressKey("u1", "g1"),
				progression.Deltas{progression.FieldExperience: 20})
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, results[0].Created, results[1].Created, "exactly one caller creates")
	assert.Equal(t, int32(2), store.creates.Load())

	got := store.byKey("u1", "g1")
	require.NotNil(t, got)
	assert.Equal(t, int64(40), got.Value(progression.FieldExperience))
}

func TestProgressionService_FindOrCreate_SecondViolationIsStoreUnavailable(t *testing.T) {
	creates := 0
	store := &mockProgressStore{
		createEntityFunc: func(context.Context, model.EntityRef, map[progression.Field]int64) (*model.Entity, error) {
			creates++
			return nil, model.ErrUniqueViolation
		},
	}
	svc := newTestProgressionService(store)

	_, err := svc.FindOrCreate(context.Background(), model.GuildProgressKey("u1", "g1"),
		progression.Deltas{progression.FieldExperience: 20})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, ErrRepeatedUniqueViolation)
	assert.NotErrorIs(t, err, model.ErrUniqueViolation)
	assert.Equal(t, 2, creates)
}

func TestProgressionService_FindOrCreate_RequiresCompositeKey(t *testing.T) {
	svc := newTestProgressionService(&mockProgressStore{})

	_, err := svc.FindOrCreate(context.Background(), model.GuildProgressRef("gp1"),
		progression.Deltas{progression.FieldExperience: 20})

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProgressionService_FindOrCreate_CreateFailure(t *testing.T) {
	store := &mockProgressStore{
		createEntityFunc: func(context.Context, model.EntityRef, map[progression.Field]int64) (*model.Entity, error) {
			return nil, errors.New("disk full")
		},
	}
	svc := newTestProgressionService(store)

	_, err := svc.FindOrCreate(context.Background(), model.GuildProgressKey("u1", "g1"),
		progression.Deltas{progression.FieldExperience: 20})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

// ============================================================================
// Reads
// ============================================================================

func TestProgressionService_GetCharacter(t *testing.T) {
	store := newMemStore()
	seedCharacter(store, "u1", map[progression.Field]int64{
		progression.FieldLevel:    12,
		progression.FieldStrength: 9,
	})
	svc := newTestProgressionService(store)

	c, err := svc.GetCharacter(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), c.Level)
	assert.Equal(t, int64(9), c.Attributes["strength"])
	assert.Len(t, c.Attributes, len(progression.AttributeFields()))

	_, err = svc.GetCharacter(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProgressionService_ListMyProgress_AttachesGuildNames(t *testing.T) {
	store := newMemStore()
	seedGuildProgress(store, "gp1", "u1", "g1", 10)
	seedGuildProgress(store, "gp2", "u2", "g1", 99)
	guilds := &mockDirectory{
		getGuildsFunc: func(_ context.Context, ids []string) ([]*model.Guild, error) {
			return []*model.Guild{{ID: "g1", Name: "Cartographers"}}, nil
		},
	}
	svc := newTestProgressionService(store, func(c *ProgressionServiceConfig) { c.Guilds = guilds })

	list, err := svc.ListMyProgress(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cartographers", list[0].Guild.Name)
	assert.Equal(t, int64(10), list[0].Experience)
}

func TestProgressionService_GuildNameLookupFailureIsTolerated(t *testing.T) {
	store := newMemStore()
	seedGuildProgress(store, "gp1", "u1", "g1", 10)
	guilds := &mockDirectory{
		getGuildsFunc: func(context.Context, []string) ([]*model.Guild, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := newTestProgressionService(store, func(c *ProgressionServiceConfig) { c.Guilds = guilds })

	gp, err := svc.GetMyProgress(context.Background(), "u1", "gp1")
	require.NoError(t, err)
	assert.Equal(t, "g1", gp.Guild.ID)
	assert.Empty(t, gp.Guild.Name)
}

func TestProgressionService_GetMyProgress_OtherUsersRecordIsNotFound(t *testing.T) {
	store := newMemStore()
	seedGuildProgress(store, "gp1", "u2", "g1", 10)
	svc := newTestProgressionService(store)

	_, err := svc.GetMyProgress(context.Background(), "u1", "gp1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.UpdateMyProgress(context.Background(), "u1", "gp1",
		progression.Deltas{progression.FieldExperience: 5})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(10), store.get("gp1").Value(progression.FieldExperience))
}

func TestProgressionService_UpdateMyProgress(t *testing.T) {
	store := newMemStore()
	seedGuildProgress(store, "gp1", "u1", "g1", 10)
	svc := newTestProgressionService(store)

	gp, clamped, err := svc.UpdateMyProgress(context.Background(), "u1", "gp1",
		progression.Deltas{progression.FieldExperience: -25})
	require.NoError(t, err)

	assert.Equal(t, int64(0), gp.Experience)
	assert.Equal(t, []progression.Field{progression.FieldExperience}, clamped)
}
