// Package progression holds the pure parts of the bounded progression
// engine: the closed set of accumulable fields, the bound table for each
// entity kind, the clamping accumulator, and the write plan that splits a
// batch of deltas into native increments and absolute sets.
//
// Nothing here touches storage. The service package reads an entity, asks
// its Schema for a WritePlan, and hands the plan to a store as one combined
// write.
//
// # Clamping
//
// Stores can increment atomically but cannot cap the result, so the cap is
// decided here from the value just read:
//
//	plan, err := progression.GuildProgressSchema().Plan(current, progression.Deltas{
//	    progression.FieldExperience: 100,
//	})
//	// plan.Inc holds unclamped deltas, plan.Set holds boundary values.
package progression
