// Package database provides database connectivity for the Questline API.
//
// Two backends are supported. SurrealDB is reached through the Database
// interface, which the repository package builds its progress store on.
// PostgreSQL and SQLite are opened as *gorm.DB for the sqlstore package.
//
// # Database Interface
//
// The Database interface defines core operations:
//
//	type Database interface {
//	    Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)
//	    QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)
//	    Execute(ctx context.Context, query string, vars map[string]interface{}) error
//	    Close() error
//	}
//
// # Error Types
//
// Standard error types for data operations:
//
//   - ErrNotFound: Record does not exist
//   - ErrDuplicate: A unique index rejected the write
//   - ErrConnection: Database connection failed
//   - ErrQuery: The statement failed
package database
