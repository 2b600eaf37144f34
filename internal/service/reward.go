package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/forgo/questline/api/internal/events"
	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
	"github.com/forgo/questline/api/internal/tracing"
)

// QuestDirectory resolves contracts, quests and guilds. Getters return
// nil, nil when the record does not exist.
type QuestDirectory interface {
	GuildLookup
	GetContract(ctx context.Context, id string) (*model.Contract, error)
	GetQuest(ctx context.Context, id string) (*model.Quest, error)
	// GetQuestGuilds returns the quest's guilds in the quest's order.
	GetQuestGuilds(ctx context.Context, questID string) ([]*model.Guild, error)
	// FinishContract moves an active contract to finished. It reports
	// false when the contract was not active.
	FinishContract(ctx context.Context, id string) (bool, error)
}

// ProgressApplier is the slice of ProgressionService the reward flow uses.
type ProgressApplier interface {
	Update(ctx context.Context, ref model.EntityRef, deltas progression.Deltas) (*UpdateResult, error)
	FindOrCreate(ctx context.Context, key model.EntityRef, deltas progression.Deltas) (*UpdateResult, error)
}

// RewardServiceConfig holds configuration for the reward service
type RewardServiceConfig struct {
	Directory         QuestDirectory
	Progress          ProgressApplier
	FanOutConcurrency int
	Publisher         events.Publisher
	Logger            *logger.Logger
}

// RewardService distributes quest rewards across guild progress records.
type RewardService struct {
	directory   QuestDirectory
	progress    ProgressApplier
	concurrency int
	publisher   events.Publisher
	log         *logger.Logger
}

// NewRewardService creates a new reward service
func NewRewardService(cfg RewardServiceConfig) *RewardService {
	if cfg.FanOutConcurrency <= 0 {
		cfg.FanOutConcurrency = 4
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &RewardService{
		directory:   cfg.Directory,
		progress:    cfg.Progress,
		concurrency: cfg.FanOutConcurrency,
		publisher:   cfg.Publisher,
		log:         cfg.Logger.With("service", "RewardService"),
	}
}

// Distribute applies deltas to userID's progress record in every guild of
// the contract's quest. Guilds are independent units of work: a failure in
// one does not undo the others. When any guild fails the result is still
// returned, alongside a *DistributionError.
//
// Delivery is at-least-once. Calling Distribute again for the same contract
// applies the deltas again.
func (s *RewardService) Distribute(ctx context.Context, contractID, userID string, deltas progression.Deltas) (*model.DistributionResult, error) {
	ctx, span := tracing.Start(ctx, tracerName, "reward.Distribute",
		attribute.String("contract.id", contractID),
		attribute.String("user.id", userID),
	)
	defer span.End()

	if err := progression.GuildProgressSchema().Validate(deltas); err != nil {
		return nil, tracing.Fail(span, invalidInput(err))
	}

	contract, err := s.ownedContract(ctx, contractID, userID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	_, guilds, err := s.questGuilds(ctx, contract.QuestID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	span.SetAttributes(attribute.Int("guilds", len(guilds)))

	result := s.fanOut(ctx, contractID, userID, guilds, deltas)
	s.publishDistribution(ctx, result)

	if err := distributionError(result); err != nil {
		s.log.Warn("reward distribution incomplete",
			"contract_id", contractID,
			"user_id", userID,
			"status", result.Status,
			"error", err,
		)
		return result, tracing.Fail(span, err)
	}
	return result, nil
}

func (s *RewardService) fanOut(ctx context.Context, contractID, userID string, guilds []*model.Guild, deltas progression.Deltas) *model.DistributionResult {
	result := &model.DistributionResult{
		ContractID: contractID,
		UserID:     userID,
		Outcomes:   make([]model.GuildOutcome, len(guilds)),
	}

	// Workers never return an error: each guild's outcome is recorded in its
	// own slot and a failure must not cancel the others.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, guild := range guilds {
		g.Go(func() error {
			out := model.GuildOutcome{Index: i, GuildID: guild.ID, GuildName: guild.Name}
			if err := ctx.Err(); err != nil {
				out.Err = storeUnavailable(err)
				result.Outcomes[i] = out
				return nil
			}
			res, err := s.progress.FindOrCreate(ctx, model.GuildProgressKey(userID, guild.ID), deltas)
			if err != nil {
				out.Err = err
			} else {
				out.Progress = res.Entity.GuildProgress(guild.Name)
				out.Created = res.Created
				out.Clamped = res.Clamped
			}
			result.Outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	result.Finalize()
	return result
}

func distributionError(r *model.DistributionResult) error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	de := &DistributionError{ContractID: r.ContractID, Total: len(r.Outcomes)}
	for _, o := range failed {
		de.FailedIdx = append(de.FailedIdx, o.Index)
		de.GuildIDs = append(de.GuildIDs, o.GuildID)
		de.Causes = append(de.Causes, o.Err)
	}
	return de
}

// CompleteContract finishes an active contract and pays out its quest's
// reward: money, experience and attributes to the character, experience to
// every guild of the quest. The finish transition happens first and only
// once, so completing the same contract twice never pays twice.
//
// Failures after the transition are reported in the result and returned
// joined; nothing is rolled back.
func (s *RewardService) CompleteContract(ctx context.Context, contractID, userID string) (*model.CompletionResult, error) {
	ctx, span := tracing.Start(ctx, tracerName, "reward.CompleteContract",
		attribute.String("contract.id", contractID),
		attribute.String("user.id", userID),
	)
	defer span.End()

	contract, err := s.ownedContract(ctx, contractID, userID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	if !contract.IsActive() {
		return nil, tracing.Fail(span, ErrContractNotActive)
	}

	quest, guilds, err := s.questGuilds(ctx, contract.QuestID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	characterDeltas, err := quest.Reward.CharacterDeltas()
	if err != nil {
		return nil, tracing.Fail(span, invalidInput(err))
	}

	finished, err := s.directory.FinishContract(ctx, contractID)
	if err != nil {
		return nil, tracing.Fail(span, storeUnavailable(err))
	}
	if !finished {
		return nil, tracing.Fail(span, ErrContractNotActive)
	}
	contract.Status = model.ContractFinished

	result := &model.CompletionResult{Contract: contract}
	var errs []error

	if len(characterDeltas) > 0 {
		res, err := s.progress.Update(ctx, model.CharacterRef(userID), characterDeltas)
		if err != nil {
			result.CharacterError = err.Error()
			errs = append(errs, fmt.Errorf("character reward: %w", err))
		} else {
			result.Character = res.Entity.Character()
		}
	}

	result.Distribution = s.fanOut(ctx, contractID, userID, guilds, quest.Reward.GuildDeltas())
	s.publishDistribution(ctx, result.Distribution)
	if err := distributionError(result.Distribution); err != nil {
		errs = append(errs, err)
	}

	if err := s.publisher.Publish(ctx, events.New(events.TypeContractCompleted, userID, map[string]any{
		"contract_id": contractID,
		"quest_id":    quest.ID,
	})); err != nil {
		s.log.Warn("publish completion event failed", "error", err, "contract_id", contractID)
	}

	if err := errors.Join(errs...); err != nil {
		s.log.Warn("contract completed with failures", "contract_id", contractID, "error", err)
		return result, tracing.Fail(span, err)
	}
	return result, nil
}

func (s *RewardService) ownedContract(ctx context.Context, contractID, userID string) (*model.Contract, error) {
	if contractID == "" || userID == "" {
		return nil, invalidInput(model.ErrInvalidRef)
	}
	contract, err := s.directory.GetContract(ctx, contractID)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if contract == nil {
		return nil, ErrContractNotFound
	}
	if contract.UserID != userID {
		return nil, ErrContractUserMismatch
	}
	return contract, nil
}

func (s *RewardService) questGuilds(ctx context.Context, questID string) (*model.Quest, []*model.Guild, error) {
	quest, err := s.directory.GetQuest(ctx, questID)
	if err != nil {
		return nil, nil, storeUnavailable(err)
	}
	if quest == nil {
		return nil, nil, ErrQuestNotFound
	}
	guilds, err := s.directory.GetQuestGuilds(ctx, questID)
	if err != nil {
		return nil, nil, storeUnavailable(err)
	}
	if len(guilds) == 0 {
		return nil, nil, ErrQuestHasNoGuilds
	}
	return quest, guilds, nil
}

func (s *RewardService) publishDistribution(ctx context.Context, r *model.DistributionResult) {
	succeeded := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			succeeded = append(succeeded, o.GuildID)
		}
	}
	if len(succeeded) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events.New(events.TypeRewardDistributed, r.UserID, map[string]any{
		"contract_id": r.ContractID,
		"status":      r.Status,
		"guild_ids":   succeeded,
	})); err != nil {
		s.log.Warn("publish distribution event failed", "error", err, "contract_id", r.ContractID)
	}
}
