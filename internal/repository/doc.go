// Package repository implements the SurrealDB progress store for the Questline API.
//
// ProgressRepository reads and writes accumulable records and repairs values
// found outside their bounds. DirectoryRepository serves guilds, quests and
// contracts. Both accept a database.Database.
//
// # Query Patterns
//
//   - Parameterized queries with $variable syntax
//   - type::record() for safe ID handling
//   - Increments use "+=" inside one UPDATE so concurrent writers add up
//   - Conditional writes carry "WHERE version = $expected" and report a
//     miss as no rows rather than an error
//
// A unique index on (user, guild) backs the composite progress key; a
// collision surfaces as model.ErrUniqueViolation.
//
// # Example Usage
//
//	repo := NewProgressRepository(db)
//	e, err := repo.ReadEntity(ctx, model.CharacterRef("user:42"))
//	if err != nil {
//	    return err
//	}
//	if e == nil {
//	    // no record yet
//	}
package repository
