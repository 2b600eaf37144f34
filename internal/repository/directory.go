package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/questline/api/internal/database"
	"github.com/forgo/questline/api/internal/model"
)

// DirectoryRepository handles quest, guild and contract data access
type DirectoryRepository struct {
	db database.Database
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db database.Database) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// CreateGuild creates a new guild
func (r *DirectoryRepository) CreateGuild(ctx context.Context, guild *model.Guild) error {
	query := `CREATE guild SET name = $name, created_on = time::now()`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"name": guild.Name})
	if err != nil {
		return fmt.Errorf("failed to create guild: %w", err)
	}
	data, ok := result.(map[string]interface{})
	if !ok {
		return errors.New("unexpected guild result format")
	}
	guild.ID = convertSurrealID(data["id"])
	return nil
}

// CreateQuest validates and creates a quest
func (r *DirectoryRepository) CreateQuest(ctx context.Context, quest *model.Quest) error {
	if err := quest.Validate(); err != nil {
		return err
	}

	attributes := map[string]interface{}{}
	for name, v := range quest.Reward.Attributes {
		attributes[name] = v
	}

	query := `
		CREATE quest CONTENT {
			title: $title,
			guild_ids: $guild_ids,
			reward: {
				money: $money,
				experience: $experience,
				attributes: $attributes
			},
			created_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"title":      quest.Title,
		"guild_ids":  quest.GuildIDs,
		"money":      quest.Reward.Money,
		"experience": quest.Reward.Experience,
		"attributes": attributes,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}
	data, ok := result.(map[string]interface{})
	if !ok {
		return errors.New("unexpected quest result format")
	}
	quest.ID = convertSurrealID(data["id"])
	return nil
}

// CreateContract binds userID to a quest. A user holds at most one contract
// per quest.
func (r *DirectoryRepository) CreateContract(ctx context.Context, contract *model.Contract) error {
	query := `
		CREATE contract SET
			quest_id = $quest_id,
			user_id = $user_id,
			status = "active",
			created_on = time::now()
	`
	vars := map[string]interface{}{
		"quest_id": contract.QuestID,
		"user_id":  contract.UserID,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: user already holds a contract for this quest", database.ErrDuplicate)
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}
	created, err := parseContract(result)
	if err != nil {
		return err
	}
	*contract = *created
	return nil
}

// GetContract retrieves a contract by ID
func (r *DirectoryRepository) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	if !hasTable(id, "contract") {
		return nil, nil
	}
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return parseContract(result)
}

// FinishContract moves an active contract to finished. It returns false
// when the contract is missing or was not active.
func (r *DirectoryRepository) FinishContract(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE type::record($id) SET
			status = "finished",
			finished_on = time::now()
		WHERE status = "active"
		RETURN AFTER
	`
	_, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to finish contract: %w", err)
	}
	return true, nil
}

// GetQuest retrieves a quest by ID
func (r *DirectoryRepository) GetQuest(ctx context.Context, id string) (*model.Quest, error) {
	if !hasTable(id, "quest") {
		return nil, nil
	}
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}
	return parseQuest(result)
}

// GetQuestGuilds returns one guild per quest guild id, in the quest's order.
func (r *DirectoryRepository) GetQuestGuilds(ctx context.Context, questID string) ([]*model.Guild, error) {
	quest, err := r.GetQuest(ctx, questID)
	if err != nil || quest == nil {
		return nil, err
	}
	return r.GetGuilds(ctx, quest.GuildIDs)
}

// GetGuilds resolves guild ids, preserving the order of ids. An id with
// no guild row comes back as a guild without a name.
func (r *DirectoryRepository) GetGuilds(ctx context.Context, ids []string) ([]*model.Guild, error) {
	if len(ids) == 0 {
		return []*model.Guild{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, recordKey(id))
	}

	query := `SELECT * FROM guild WHERE record::id(id) IN $keys`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"keys": keys})
	if err != nil {
		return nil, fmt.Errorf("failed to get guilds: %w", err)
	}

	byID := make(map[string]*model.Guild)
	for _, row := range extractQueryResults(result) {
		data, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		g := &model.Guild{ID: convertSurrealID(data["id"]), Name: getString(data, "name")}
		byID[g.ID] = g
	}

	guilds := make([]*model.Guild, 0, len(ids))
	for _, id := range ids {
		g, ok := byID[id]
		if !ok {
			g = &model.Guild{ID: id}
		}
		guilds = append(guilds, g)
	}
	return guilds, nil
}

func parseContract(result interface{}) (*model.Contract, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected contract result format")
	}
	return &model.Contract{
		ID:         convertSurrealID(data["id"]),
		QuestID:    getString(data, "quest_id"),
		UserID:     getString(data, "user_id"),
		Status:     model.ContractStatus(getString(data, "status")),
		CreatedOn:  parseTime(data["created_on"]),
		FinishedOn: getTime(data, "finished_on"),
	}, nil
}

func parseQuest(result interface{}) (*model.Quest, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected quest result format")
	}
	q := &model.Quest{
		ID:       convertSurrealID(data["id"]),
		Title:    getString(data, "title"),
		GuildIDs: getStringSlice(data, "guild_ids"),
	}
	if reward := getMap(data, "reward"); reward != nil {
		q.Reward.Money = getInt64(reward, "money")
		q.Reward.Experience = getInt64(reward, "experience")
		if attrs := getMap(reward, "attributes"); len(attrs) > 0 {
			q.Reward.Attributes = make(map[string]int64, len(attrs))
			for name := range attrs {
				q.Reward.Attributes[name] = getInt64(attrs, name)
			}
		}
	}
	return q, nil
}
