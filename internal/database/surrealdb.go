package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/forgo/questline/api/internal/tracing"
)

const tracerName = "questline/database"

// SurrealDB implements the Database interface for SurrealDB
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates a new SurrealDB instance
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{
		config: cfg,
	}
}

// Endpoint returns the websocket URL of the configured server.
func (c Config) Endpoint() string {
	return fmt.Sprintf("ws://%s:%s", c.Host, c.Port)
}

// Connect signs in and selects the namespace and database.
func (s *SurrealDB) Connect(ctx context.Context) error {
	db, err := surrealdb.FromEndpointURLString(ctx, s.config.Endpoint())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if _, err := db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	}); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
	}

	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: use %s/%s failed: %v", ErrConnection, s.config.Namespace, s.config.Database, err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SurrealDB) Close() error {
	if s.db != nil {
		return s.db.Close(context.Background())
	}
	return nil
}

// Ping checks the database connection
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query executes a query and returns one {status, result} map per statement.
// A statement rejected by a unique index fails with ErrDuplicate.
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	if s.db == nil {
		return nil, ErrConnection
	}

	ctx, span := tracing.Start(ctx, tracerName, "surrealdb.Query",
		attribute.String("db.system", "surrealdb"),
		attribute.String("db.namespace", s.config.Namespace+"/"+s.config.Database),
	)
	defer span.End()

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, tracing.Fail(span, classify(err.Error()))
	}
	if results == nil {
		return nil, nil
	}
	span.SetAttributes(attribute.Int("db.statements", len(*results)))

	output := make([]interface{}, 0, len(*results))
	for i, r := range *results {
		if r.Status != "OK" {
			if r.Error != nil {
				return nil, tracing.Fail(span, fmt.Errorf("statement %d: %w", i, classify(r.Error.Message)))
			}
			return nil, tracing.Fail(span, fmt.Errorf("statement %d: %w: status %s", i, ErrQuery, r.Status))
		}
		output = append(output, statementResult(r.Status, r.Result))
	}

	return output, nil
}

func statementResult(status string, result interface{}) map[string]interface{} {
	return map[string]interface{}{"status": status, "result": result}
}

// classify maps a SurrealDB error message onto the package errors. Index
// violations read "Database index `name` already contains ...", id
// collisions "Database record `t:id` already exists".
func classify(msg string) error {
	if strings.Contains(msg, "already contains") || strings.Contains(msg, "already exists") {
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	}
	return fmt.Errorf("%w: %s", ErrQuery, msg)
}

// QueryOne executes a query and returns the first record of the first
// statement. It returns ErrNotFound when the statement matched nothing.
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return firstRecord(results[0])
}

// firstRecord unwraps one statement result. Scalar results (count, bool)
// come back bare.
func firstRecord(statement interface{}) (interface{}, error) {
	resp, ok := statement.(map[string]interface{})
	if !ok || resp["status"] != "OK" {
		return statement, nil
	}
	records, ok := resp["result"].([]interface{})
	if !ok {
		return resp["result"], nil
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Execute runs a query without returning results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}
