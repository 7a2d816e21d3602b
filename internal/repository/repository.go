// Package repository provides data access interfaces and implementations
// for the research pipeline service.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL
// implementations following the repository pattern to abstract data
// persistence from business logic.
//
// # Repository Interfaces
//
//   - WorkflowRepository: Persists research workflow state snapshots and
//     serves queries over them
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple
// goroutines. The underlying pgxpool handles connection pooling and
// synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Usage Pattern
//
// Repositories are typically created at application startup and passed to
// services:
//
//	db, _ := database.New(ctx, cfg, logger)
//	workflowRepo := repository.NewPgWorkflowRepository(db)
package repository

import (
	"github.com/helixir/research-pipeline-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. This allows repositories to work with both direct pool
// connections and transactions, and to be tested against pgxmock.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
