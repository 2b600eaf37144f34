package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/forgo/questline/api/internal/database"
	"github.com/forgo/questline/api/internal/model"
)

// CreateGuild creates a new guild
func (s *Store) CreateGuild(ctx context.Context, guild *model.Guild) error {
	r := GuildRow{ID: guild.ID, Name: guild.Name, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("failed to create guild: %w", err)
	}
	guild.ID = r.ID
	return nil
}

// CreateQuest validates and creates a quest with its ordered guild list
func (s *Store) CreateQuest(ctx context.Context, quest *model.Quest) error {
	if err := quest.Validate(); err != nil {
		return err
	}

	var attrs []byte
	if len(quest.Reward.Attributes) > 0 {
		b, err := json.Marshal(quest.Reward.Attributes)
		if err != nil {
			return fmt.Errorf("encode reward attributes: %w", err)
		}
		attrs = b
	}

	r := QuestRow{
		ID:               quest.ID,
		Title:            quest.Title,
		RewardMoney:      quest.Reward.Money,
		RewardExperience: quest.Reward.Experience,
		RewardAttributes: attrs,
		CreatedAt:        time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		links := make([]QuestGuildRow, 0, len(quest.GuildIDs))
		for i, id := range quest.GuildIDs {
			links = append(links, QuestGuildRow{QuestID: r.ID, Position: i, GuildID: id})
		}
		return tx.Create(&links).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}
	quest.ID = r.ID
	return nil
}

// CreateContract binds a user to a quest. A second contract for the same
// user and quest fails with database.ErrDuplicate.
func (s *Store) CreateContract(ctx context.Context, contract *model.Contract) error {
	r := ContractRow{
		ID:        contract.ID,
		UserID:    contract.UserID,
		QuestID:   contract.QuestID,
		Status:    string(model.ContractActive),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already holds a contract for this quest", database.ErrDuplicate)
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}
	*contract = *contractModel(&r)
	return nil
}

// GetContract retrieves a contract by ID
func (s *Store) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	var r ContractRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return contractModel(&r), nil
}

// FinishContract moves an active contract to finished. It returns false
// when the contract is missing or was not active.
func (s *Store) FinishContract(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&ContractRow{}).
		Where("id = ? AND status = ?", id, string(model.ContractActive)).
		Updates(map[string]any{
			"status":      string(model.ContractFinished),
			"finished_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to finish contract: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetQuest retrieves a quest and its guild ids in order
func (s *Store) GetQuest(ctx context.Context, id string) (*model.Quest, error) {
	db := s.db.WithContext(ctx)

	var r QuestRow
	if err := db.Where("id = ?", id).Take(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	var links []QuestGuildRow
	if err := db.Where("quest_id = ?", id).Order("position ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get quest guilds: %w", err)
	}

	q := &model.Quest{
		ID:    r.ID,
		Title: r.Title,
		Reward: model.Reward{
			Money:      r.RewardMoney,
			Experience: r.RewardExperience,
		},
		GuildIDs: make([]string, 0, len(links)),
	}
	if len(r.RewardAttributes) > 0 {
		if err := json.Unmarshal(r.RewardAttributes, &q.Reward.Attributes); err != nil {
			return nil, fmt.Errorf("decode reward attributes of %s: %w", id, err)
		}
	}
	for _, l := range links {
		q.GuildIDs = append(q.GuildIDs, l.GuildID)
	}
	return q, nil
}

// GetQuestGuilds returns one guild per quest guild id, in the quest's order.
func (s *Store) GetQuestGuilds(ctx context.Context, questID string) ([]*model.Guild, error) {
	quest, err := s.GetQuest(ctx, questID)
	if err != nil || quest == nil {
		return nil, err
	}
	return s.GetGuilds(ctx, quest.GuildIDs)
}

// GetGuilds resolves guild ids, preserving the order of ids. An id with
// no guild row comes back as a guild without a name.
func (s *Store) GetGuilds(ctx context.Context, ids []string) ([]*model.Guild, error) {
	if len(ids) == 0 {
		return []*model.Guild{}, nil
	}

	var rows []GuildRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get guilds: %w", err)
	}

	byID := make(map[string]*model.Guild, len(rows))
	for _, r := range rows {
		byID[r.ID] = &model.Guild{ID: r.ID, Name: r.Name}
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

func contractModel(r *ContractRow) *model.Contract {
	return &model.Contract{
		ID:         r.ID,
		QuestID:    r.QuestID,
		UserID:     r.UserID,
		Status:     model.ContractStatus(r.Status),
		CreatedOn:  r.CreatedAt,
		FinishedOn: r.FinishedAt,
	}
}
