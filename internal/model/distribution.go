package model

import "github.com/forgo/questline/api/internal/progression"

// DistributionStatus summarises a fan-out across a quest's guilds.
type DistributionStatus string

const (
	DistributionApplied DistributionStatus = "applied"
	DistributionPartial DistributionStatus = "partial"
	DistributionFailed  DistributionStatus = "failed"
)

// GuildOutcome is the result of applying a reward to one guild. Exactly one
// of Progress and Err is set.
type GuildOutcome struct {
	Index     int                 `json:"index"`
	GuildID   string              `json:"guild_id"`
	GuildName string              `json:"guild_name"`
	Progress  *GuildProgress      `json:"progress,omitempty"`
	Created   bool                `json:"created"`
	Clamped   []progression.Field `json:"clamped,omitempty"`
	Err       error               `json:"-"`
	Error     string              `json:"error,omitempty"`
}

// Succeeded reports whether the guild's record was written.
func (o GuildOutcome) Succeeded() bool {
	return o.Err == nil
}

// DistributionResult lists per-guild outcomes in the quest's guild order.
// Guilds that succeeded stay committed when others fail.
type DistributionResult struct {
	ContractID string             `json:"contract_id"`
	UserID     string             `json:"user_id"`
	Status     DistributionStatus `json:"status"`
	Outcomes   []GuildOutcome     `json:"outcomes"`
}

// Finalize fills Status and the serialisable error text of each outcome.
func (r *DistributionResult) Finalize() {
	failed := 0
	for i := range r.Outcomes {
		if r.Outcomes[i].Err != nil {
			failed++
			r.Outcomes[i].Error = r.Outcomes[i].Err.Error()
		}
	}
	switch {
	case failed == 0:
		r.Status = DistributionApplied
	case failed == len(r.Outcomes):
		r.Status = DistributionFailed
	default:
		r.Status = DistributionPartial
	}
}

// Succeeded returns the progress records written.
func (r *DistributionResult) Succeeded() []*GuildProgress {
	var out []*GuildProgress
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			out = append(out, o.Progress)
		}
	}
	return out
}

// Failed returns the outcomes that did not apply.
func (r *DistributionResult) Failed() []GuildOutcome {
	var out []GuildOutcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// CompletionResult reports everything that happened when a contract was
// completed. Character and Distribution are nil when that step did not run.
type CompletionResult struct {
	Contract       *Contract           `json:"contract"`
	Character      *Character          `json:"character,omitempty"`
	CharacterError string              `json:"character_error,omitempty"`
	Distribution   *DistributionResult `json:"distribution,omitempty"`
}
