// Package service implements the table, file, link and principal operations
// the HTTP layer exposes.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with repository dependencies
//   - Every operation takes the acting *xtable.Principal and checks table and row permissions
//   - Errors are returned as sentinel errors, *xtable.ValidationError, or wrapped errors
//   - Context is passed through for cancellation and request-scoped values
//
// # Repository Interfaces
//
// Services define their own repository interfaces so tests can substitute
// func-field mocks for the SurrealDB repositories.
//
// # Caching
//
// TableService caches picker option rows and PrincipalService caches resolved
// principals. Writes through TableService drop the affected keys.
package service
