// Package service implements the progression engine for the Questline API.
//
// # Services
//
//   - ProgressionService: applies signed deltas to bounded fields through a
//     read-plan-write cycle, and finds or creates guild progress records
//   - RewardService: fans a reward out over a quest's guilds and completes
//     contracts
//   - AuditService: clamps stored values that escaped their bounds
//
// Services define the store interfaces they need (ProgressStore,
// QuestDirectory, BoundsRepairer) so that the SurrealDB and SQL stores and
// test mocks are interchangeable.
//
// # Error Handling
//
// Errors fall into three classes matched with errors.Is: ErrInvalidInput,
// ErrNotFound and ErrStoreUnavailable. A fan-out that fails for some guilds
// returns its result together with a *DistributionError; the guilds that
// succeeded are not rolled back.
//
// # Example Usage
//
//	progress := service.NewProgressionService(service.ProgressionServiceConfig{
//	    Store:  store,
//	    Guilds: directory,
//	})
//	res, err := progress.Update(ctx, model.CharacterRef(userID), progression.Deltas{
//	    progression.FieldMoney: 50,
//	})
package service
