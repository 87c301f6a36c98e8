// Package e2e contains end-to-end acceptance tests for the CafeMarcheDB API.
//
// These tests drive the HTTP handlers against a real SurrealDB instance with
// the embedded schema and seed data applied. They are skipped when SurrealDB
// is not reachable.
//
// To run tests:
//  1. Start SurrealDB: surreal start memory -A --user root --pass root
//  2. Run tests: go test ./internal/e2e/...
//
// Environment variables:
//
//	TEST_DB_HOST     - SurrealDB host (default: localhost)
//	TEST_DB_PORT     - SurrealDB port (default: 8000)
//	TEST_DB_USER     - SurrealDB username (default: root)
//	TEST_DB_PASSWORD - SurrealDB password (default: root)
package e2e
