// Package helpers provides test utility functions for CafeMarcheDB.
//
// # Server
//
// NewServer wires the HTTP API over a test database, with in-memory blob
// and cache stores:
//
//	srv := helpers.NewServer(t, tdb.DB)
//	resp := srv.Do(helpers.NewRequest(t, "GET", "/v1/tables").AsUser(editor).Build())
//
// # Identity
//
// Requests act as the public role unless AsUser or AsAdmin sets the
// X-User-ID (and X-Intention) headers.
//
// # Assertion Helpers
//
//	helpers.AssertStatus(t, resp, http.StatusOK)
//	helpers.AssertValidationError(t, resp, "name")
//	helpers.AssertRecordExists(t, tdb.DB, "event:abc123")
package helpers
