// Package testdb provides SurrealDB test database utilities for the
// Questline API.
//
// # Test Database Setup
//
// Create a test database for each test:
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    defer tdb.Close()
//	}
//
// New skips the test when TEST_DB_HOST is unset.
//
// # Migrations
//
// Every migrations/*.surql file is applied in name order on setup.
//
// # Isolation
//
// Each TestDB gets its own namespace, removed again by Close. Reset clears
// the tables in place for tests that share one TestDB, using an AtomicBatch
// so every DELETE runs in one BEGIN/COMMIT block.
package testdb
