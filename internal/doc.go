// Package internal documents the event planning server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, and routing
// - domain: business logic and domain models (events, users, admins, backups)
// - storage: database access and repositories (pgx + Postgres)
// - jobs: River workers, periodic jobs and the notification outbox
// - mcp: read-only agent interface over the Model Context Protocol
// - auth, audit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
