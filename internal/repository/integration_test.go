package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/questline/api/internal/database"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
	"github.com/forgo/questline/api/internal/repository"
	"github.com/forgo/questline/api/internal/testing/fixtures"
	"github.com/forgo/questline/api/internal/testing/testdb"
)

type env struct {
	tdb       *testdb.TestDB
	progress  *repository.ProgressRepository
	directory *repository.DirectoryRepository
	fx        *fixtures.Factory
}

func setup(t *testing.T) *env {
	t.Helper()
	tdb := testdb.New(t)
	t.Cleanup(tdb.Close)

	progress := repository.NewProgressRepository(tdb.DB)
	directory := repository.NewDirectoryRepository(tdb.DB)
	return &env{
		tdb:       tdb,
		progress:  progress,
		directory: directory,
		fx:        fixtures.New(progress, directory),
	}
}

func TestProgress_CreateReadWrite(t *testing.T) {
	e := setup(t)
	ctx := e.tdb.Ctx()
	userID := fixtures.NewUserID()

	created := e.fx.CreateCharacter(t, userID, fixtures.WithValue(progression.FieldWisdom, 250))
	assert.Equal(t, userID, created.ID)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, int64(250), created.Value(progression.FieldWisdom))

	v := created.Version
	written, err := e.progress.WriteEntity(ctx, model.CharacterRef(userID), model.EntityWrite{
		Inc:             map[progression.Field]int64{progression.FieldMoney: 50},
		Set:             map[progression.Field]int64{progression.FieldWisdom: 255},
		ExpectedVersion: &v,
	})
	require.NoError(t, err)
	require.NotNil(t, written)
	assert.Equal(t, int64(50), written.Value(progression.FieldMoney))
	assert.Equal(t, int64(255), written.Value(progression.FieldWisdom))
	assert.Equal(t, int64(2), written.Version)

	stale, err := e.progress.WriteEntity(ctx, model.CharacterRef(userID), model.EntityWrite{
		Inc:             map[progression.Field]int64{progression.FieldMoney: 50},
		ExpectedVersion: &v,
	})
	require.NoError(t, err)
	assert.Nil(t, stale, "a stale version matches no record")

	read, err := e.progress.ReadEntity(ctx, model.CharacterRef(userID))
	require.NoError(t, err)
	assert.Equal(t, int64(50), read.Value(progression.FieldMoney))
}

func TestProgress_ReadMissing(t *testing.T) {
	e := setup(t)

	got, err := e.progress.ReadEntity(e.tdb.Ctx(), model.CharacterRef(fixtures.NewUserID()))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = e.progress.ReadEntity(e.tdb.Ctx(), model.GuildProgressKey(fixtures.NewUserID(), "guild:none"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProgress_CompositeKeyIsUnique(t *testing.T) {
	e := setup(t)
	userID := fixtures.NewUserID()
	guild := e.fx.CreateGuilds(t, 1)[0]

	first := e.fx.CreateGuildProgress(t, userID, guild.ID, 10)

	_, err := e.progress.CreateEntity(e.tdb.Ctx(), model.GuildProgressKey(userID, guild.ID),
		map[progression.Field]int64{progression.FieldExperience: 20})
	assert.ErrorIs(t, err, model.ErrUniqueViolation)

	byKey, err := e.progress.ReadEntity(e.tdb.Ctx(), model.GuildProgressKey(userID, guild.ID))
	require.NoError(t, err)
	assert.Equal(t, first.ID, byKey.ID)
	assert.Equal(t, int64(10), byKey.Value(progression.FieldExperience))

	list, err := e.progress.ListGuildProgress(e.tdb.Ctx(), userID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProgress_ClampOutOfBounds(t *testing.T) {
	e := setup(t)
	userID := fixtures.NewUserID()
	e.fx.CreateCharacter(t, userID)

	e.tdb.MustExec(`UPDATE type::thing("character", $id) SET attributes.focus = 300`,
		map[string]interface{}{"id": userID})

	n, err := e.progress.ClampOutOfBounds(e.tdb.Ctx(), progression.KindCharacter, progression.FieldFocus,
		progression.Bound{Min: 0, Max: 255})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := e.progress.ReadEntity(e.tdb.Ctx(), model.CharacterRef(userID))
	require.NoError(t, err)
	assert.Equal(t, int64(255), got.Value(progression.FieldFocus))
}

func TestDirectory_QuestGuildOrder(t *testing.T) {
	e := setup(t)
	guilds := e.fx.CreateGuilds(t, 3)
	reversed := []*model.Guild{guilds[2], guilds[0], guilds[1]}

	quest := e.fx.CreateQuest(t, reversed)

	got, err := e.directory.GetQuestGuilds(e.tdb.Ctx(), quest.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, g := range got {
		assert.Equal(t, reversed[i].ID, g.ID)
	}
}

func TestDirectory_QuestGuildWithoutRecord(t *testing.T) {
	e := setup(t)
	guilds := e.fx.CreateGuilds(t, 2)
	orphan := &model.Guild{ID: "guild:orphan"}
	order := []*model.Guild{guilds[0], orphan, guilds[1]}

	quest := e.fx.CreateQuest(t, order)

	got, err := e.directory.GetQuestGuilds(e.tdb.Ctx(), quest.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, g := range got {
		assert.Equal(t, order[i].ID, g.ID)
	}
	assert.Empty(t, got[1].Name)
}

func TestDirectory_ContractLifecycle(t *testing.T) {
	e := setup(t)
	userID := fixtures.NewUserID()
	quest := e.fx.CreateQuest(t, e.fx.CreateGuilds(t, 1))
	contract := e.fx.CreateContract(t, userID, quest)
	assert.True(t, contract.IsActive())

	dup := &model.Contract{QuestID: quest.ID, UserID: userID}
	assert.ErrorIs(t, e.directory.CreateContract(e.tdb.Ctx(), dup), database.ErrDuplicate)

	ok, err := e.directory.FinishContract(e.tdb.Ctx(), contract.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.directory.FinishContract(e.tdb.Ctx(), contract.ID)
	require.NoError(t, err)
	assert.False(t, ok, "a finished contract cannot finish again")

	got, err := e.directory.GetContract(e.tdb.Ctx(), contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractFinished, got.Status)
	assert.NotNil(t, got.FinishedOn)
}

func TestTestDB_Reset(t *testing.T) {
	e := setup(t)
	e.fx.CreateGuilds(t, 2)

	e.tdb.Reset(t)

	_, err := e.tdb.DB.QueryOne(e.tdb.Ctx(), "SELECT * FROM guild", nil)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
