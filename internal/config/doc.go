// Package config manages application configuration for the Questline API.
//
// Configuration is parsed from environment variables into nested structs
// with github.com/caarlos0/env, then checked with Validate, which reports
// every problem at once:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS, idempotency TTL)
//   - StoreConfig: which progress store backs the engine (surrealdb, postgres, sqlite)
//   - DatabaseConfig: SurrealDB connection settings
//   - JWTConfig: bearer token verification
//   - RedisConfig: optional event bus and shared idempotency cache
//   - TracingConfig: OpenTelemetry exporter
//   - ProgressionConfig: concurrency guard, conflict retries, fan-out width
//   - JobsConfig: background job intervals
//
// # Key Environment Variables
//
//	STORE_DRIVER          - surrealdb (default), postgres or sqlite
//	SQL_DSN               - DSN for the postgres and sqlite drivers
//	CONCURRENCY_GUARD     - version (default) or none
//	FANOUT_CONCURRENCY    - parallel guild writes per distribution (default: 4)
//	REDIS_ADDR            - enables Redis events and idempotency cache
package config
