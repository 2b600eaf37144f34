package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/forgo/questline/api/internal/progression"
)

// CharacterRow is one user's character. Attributes are flat columns named
// after the attribute.
type CharacterRow struct {
	UserID     string `gorm:"column:user_id;size:128;primaryKey"`
	Experience int64  `gorm:"column:experience;not null;default:0"`
	Money      int64  `gorm:"column:money;not null;default:0"`
	Level      int64  `gorm:"column:level;not null;default:1"`

	Strength     int64 `gorm:"column:strength;not null;default:0"`
	Stamina      int64 `gorm:"column:stamina;not null;default:0"`
	Dexterity    int64 `gorm:"column:dexterity;not null;default:0"`
	Speed        int64 `gorm:"column:speed;not null;default:0"`
	Vitality     int64 `gorm:"column:vitality;not null;default:0"`
	Agility      int64 `gorm:"column:agility;not null;default:0"`
	Intelligence int64 `gorm:"column:intelligence;not null;default:0"`
	Charisma     int64 `gorm:"column:charisma;not null;default:0"`
	Wisdom       int64 `gorm:"column:wisdom;not null;default:0"`
	Perception   int64 `gorm:"column:perception;not null;default:0"`
	Focus        int64 `gorm:"column:focus;not null;default:0"`
	Willpower    int64 `gorm:"column:willpower;not null;default:0"`

	Version   int64     `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (CharacterRow) TableName() string { return "characters" }

func (r *CharacterRow) fields() map[progression.Field]*int64 {
	return map[progression.Field]*int64{
		progression.FieldExperience:   &r.Experience,
		progression.FieldMoney:        &r.Money,
		progression.FieldLevel:        &r.Level,
		progression.FieldStrength:     &r.Strength,
		progression.FieldStamina:      &r.Stamina,
		progression.FieldDexterity:    &r.Dexterity,
		progression.FieldSpeed:        &r.Speed,
		progression.FieldVitality:     &r.Vitality,
		progression.FieldAgility:      &r.Agility,
		progression.FieldIntelligence: &r.Intelligence,
		progression.FieldCharisma:     &r.Charisma,
		progression.FieldWisdom:       &r.Wisdom,
		progression.FieldPerception:   &r.Perception,
		progression.FieldFocus:        &r.Focus,
		progression.FieldWillpower:    &r.Willpower,
	}
}

// GuildProgressRow is a user's experience within one guild. At most one row
// exists per (user_id, guild_id).
type GuildProgressRow struct {
	ID         string    `gorm:"column:id;size:36;primaryKey"`
	UserID     string    `gorm:"column:user_id;size:128;not null;uniqueIndex:idx_guild_progress_user_guild,priority:1"`
	GuildID    string    `gorm:"column:guild_id;size:128;not null;uniqueIndex:idx_guild_progress_user_guild,priority:2"`
	Experience int64     `gorm:"column:experience;not null;default:0"`
	Version    int64     `gorm:"column:version;not null;default:1"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (GuildProgressRow) TableName() string { return "guild_progress" }

func (r *GuildProgressRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *GuildProgressRow) fields() map[progression.Field]*int64 {
	return map[progression.Field]*int64{progression.FieldExperience: &r.Experience}
}

// GuildRow holds the guild fields this service reads.
type GuildRow struct {
	ID        string    `gorm:"column:id;size:36;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (GuildRow) TableName() string { return "guilds" }

func (r *GuildRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// QuestRow is a quest and its reward. Attribute rewards are stored as a JSON
// object of attribute name to amount.
type QuestRow struct {
	ID               string         `gorm:"column:id;size:36;primaryKey"`
	Title            string         `gorm:"column:title;not null"`
	RewardMoney      int64          `gorm:"column:reward_money;not null"`
	RewardExperience int64          `gorm:"column:reward_experience;not null"`
	RewardAttributes datatypes.JSON `gorm:"column:reward_attributes"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null"`
}

func (QuestRow) TableName() string { return "quests" }

func (r *QuestRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// QuestGuildRow orders the guilds of a quest.
type QuestGuildRow struct {
	QuestID  string `gorm:"column:quest_id;size:36;primaryKey"`
	Position int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	GuildID  string `gorm:"column:guild_id;size:36;not null;index"`
}

func (QuestGuildRow) TableName() string { return "quest_guilds" }

// ContractRow binds a user to a quest. A user holds at most one contract per
// quest.
type ContractRow struct {
	ID         string     `gorm:"column:id;size:36;primaryKey"`
	UserID     string     `gorm:"column:user_id;size:128;not null;uniqueIndex:idx_contract_user_quest,priority:1"`
	QuestID    string     `gorm:"column:quest_id;size:36;not null;uniqueIndex:idx_contract_user_quest,priority:2"`
	Status     string     `gorm:"column:status;size:16;not null;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

func (ContractRow) TableName() string { return "contracts" }

func (r *ContractRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// All lists every row type, in migration order.
func All() []any {
	return []any{
		&CharacterRow{},
		&GuildProgressRow{},
		&GuildRow{},
		&QuestRow{},
		&QuestGuildRow{},
		&ContractRow{},
	}
}
