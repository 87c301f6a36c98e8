// Package testdb provides test database utilities for CafeMarcheDB.
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
// New applies the embedded migrations and the seed file, so the standard
// permissions, roles and event lookups exist.
//
// # Isolation
//
// Each TestDB gets its own namespace, removed again by Close.
//
// # Availability
//
// Connection settings come from TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER and
// TEST_DB_PASSWORD. When SurrealDB is unreachable, or with -short, the test is
// skipped rather than failed.
package testdb
