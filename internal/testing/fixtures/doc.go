// Package fixtures provides test data factories for CafeMarcheDB.
//
// # Factory Pattern
//
// Create a factory with a database connection:
//
//	f := fixtures.New(tdb.DB)
//
// # Creating Test Data
//
// Factory methods insert rows directly, bypassing the table service, and
// return their qualified ids:
//
//	admin := f.CreateAdmin(t)                  // "user:3fa1..."
//	song := f.CreateSong(t, "Bella ciao")
//	link := f.CreateCustomLink(t, "setlist", "https://example.com/setlist")
//
// # Customization
//
// Use option functions for customization:
//
//	user := f.CreateUser(t, fixtures.WithRole("role:editor"))
//	event := f.CreateEvent(t, fixtures.WithEventVisibility("permission:view_admin_notes"))
//
// # Cleanup
//
// Test data is removed with the namespace when the test database is closed.
package fixtures
