package model

import (
	"fmt"
	"time"

	"github.com/forgo/questline/api/internal/progression"
)

// Reward bounds configured on quests
var (
	RewardMoneyBound      = progression.Bound{Min: 500, Max: 200_000}
	RewardExperienceBound = progression.Bound{Min: 100, Max: 200_000}
	RewardAttributeBound  = progression.Bound{Min: 0, Max: 5}
)

// Guild is the slice of a guild this service needs.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Reward is the amount granted when a contract on a quest is completed.
type Reward struct {
	Money      int64            `json:"money"`
	Experience int64            `json:"experience"`
	Attributes map[string]int64 `json:"attributes,omitempty"`
}

// Validate checks the reward against the configured quest limits.
func (r Reward) Validate() []FieldError {
	var errs []FieldError
	if !RewardMoneyBound.Contains(r.Money) {
		errs = append(errs, FieldError{Field: "reward.money", Message: "must be within " + RewardMoneyBound.String()})
	}
	if !RewardExperienceBound.Contains(r.Experience) {
		errs = append(errs, FieldError{Field: "reward.experience", Message: "must be within " + RewardExperienceBound.String()})
	}
	for name, v := range r.Attributes {
		if _, err := progression.ParseAttribute(name); err != nil {
			errs = append(errs, FieldError{Field: "reward.attributes." + name, Message: "unknown attribute"})
			continue
		}
		if !RewardAttributeBound.Contains(v) {
			errs = append(errs, FieldError{Field: "reward.attributes." + name, Message: "must be within " + RewardAttributeBound.String()})
		}
	}
	return errs
}

// CharacterDeltas returns the deltas this reward applies to a character.
func (r Reward) CharacterDeltas() (progression.Deltas, error) {
	d := progression.Deltas{}
	if r.Money != 0 {
		d[progression.FieldMoney] = r.Money
	}
	if r.Experience != 0 {
		d[progression.FieldExperience] = r.Experience
	}
	for name, v := range r.Attributes {
		f, err := progression.ParseAttribute(name)
		if err != nil {
			return nil, err
		}
		if v != 0 {
			d[f] = v
		}
	}
	return d, nil
}

// GuildDeltas returns the deltas this reward applies to each guild's
// progress record.
func (r Reward) GuildDeltas() progression.Deltas {
	return progression.Deltas{progression.FieldExperience: r.Experience}
}

// Quest is a unit of work that belongs to one or more guilds.
type Quest struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	GuildIDs []string `json:"guild_ids"`
	Reward   Reward   `json:"reward"`
}

// Validate checks quest fields used by seeding and fixtures.
func (q *Quest) Validate() error {
	var errs []FieldError
	if q.Title == "" {
		errs = append(errs, FieldError{Field: "title", Message: "is required"})
	}
	if len(q.GuildIDs) == 0 {
		errs = append(errs, FieldError{Field: "guild_ids", Message: "a quest must belong to at least one guild"})
	}
	errs = append(errs, q.Reward.Validate()...)
	if len(errs) > 0 {
		return NewValidationError(errs)
	}
	return nil
}

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	ContractActive   ContractStatus = "active"
	ContractFinished ContractStatus = "finished"
)

// Contract binds one user to one quest.
type Contract struct {
	ID         string         `json:"id"`
	QuestID    string         `json:"quest_id"`
	UserID     string         `json:"user_id"`
	Status     ContractStatus `json:"status"`
	CreatedOn  time.Time      `json:"created_on"`
	FinishedOn *time.Time     `json:"finished_on,omitempty"`
}

// IsActive reports whether the contract can still be completed.
func (c *Contract) IsActive() bool {
	return c.Status == ContractActive
}

func (s ContractStatus) Valid() error {
	switch s {
	case ContractActive, ContractFinished:
		return nil
	}
	return fmt.Errorf("unknown contract status %q", s)
}
