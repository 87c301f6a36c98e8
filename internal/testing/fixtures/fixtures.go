// Package fixtures provides test data factories for e2e testing.
//
// Each factory method creates rows with sensible defaults while allowing
// customization via option functions, and returns the qualified record id
// ("event:abc123") the API uses.
//
// Usage:
//
//	f := fixtures.New(tdb.DB)
//	editor := f.CreateUser(t, fixtures.WithRole("role:editor"))
//	event := f.CreateEvent(t, fixtures.WithEventName("Spring concert"))
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
)

// Factory creates test rows in the database
type Factory struct {
	db database.Database
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{db: db}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (f *Factory) create(t *testing.T, table, set string, vars map[string]interface{}) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := randomID()
	vars["tb"] = table
	vars["key"] = key
	if err := f.db.Execute(ctx, "CREATE type::thing($tb, $key) SET "+set, vars); err != nil {
		t.Fatalf("fixtures: failed to create %s: %v", table, err)
	}
	return table + ":" + key
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Name     string
	Email    string
	RoleID   string
	SysAdmin bool
}

// WithRole assigns the user a role, e.g. "role:editor".
func WithRole(roleID string) func(*UserOpts) {
	return func(o *UserOpts) { o.RoleID = roleID }
}

// WithSysAdmin marks the user as a system administrator.
func WithSysAdmin() func(*UserOpts) {
	return func(o *UserOpts) { o.SysAdmin = true }
}

// CreateUser creates a member-role user
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) string {
	t.Helper()

	id := randomID()
	o := UserOpts{
		Name:   "Test User " + id[:6],
		Email:  "user_" + id + "@example.com",
		RoleID: "role:member",
	}
	for _, opt := range opts {
		opt(&o)
	}

	return f.create(t, "user", "name = $name, email = $email, role_id = $role, is_sys_admin = $admin", map[string]interface{}{
		"name":  o.Name,
		"email": o.Email,
		"role":  o.RoleID,
		"admin": o.SysAdmin,
	})
}

// CreateEditor creates a user holding the editor role
func (f *Factory) CreateEditor(t *testing.T) string {
	t.Helper()
	return f.CreateUser(t, WithRole("role:editor"))
}

// CreateAdmin creates a system administrator with the admin role
func (f *Factory) CreateAdmin(t *testing.T) string {
	t.Helper()
	return f.CreateUser(t, WithRole("role:admin"), WithSysAdmin())
}

// ============================================================================
// Event Fixtures
// ============================================================================

// EventOpts customizes event creation
type EventOpts struct {
	Name                string
	StartAt             time.Time
	StatusID            string
	VisiblePermissionID string
	Deleted             bool
}

// WithEventName sets the event name.
func WithEventName(name string) func(*EventOpts) {
	return func(o *EventOpts) { o.Name = name }
}

// WithEventVisibility restricts the event to holders of a permission.
func WithEventVisibility(permissionID string) func(*EventOpts) {
	return func(o *EventOpts) { o.VisiblePermissionID = permissionID }
}

// WithEventDeleted soft-deletes the event.
func WithEventDeleted() func(*EventOpts) {
	return func(o *EventOpts) { o.Deleted = true }
}

// CreateEvent creates a confirmed event one week from now
func (f *Factory) CreateEvent(t *testing.T, opts ...func(*EventOpts)) string {
	t.Helper()

	o := EventOpts{
		Name:                "Test Event " + randomID()[:6],
		StartAt:             time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second),
		StatusID:            "event_status:confirmed",
		VisiblePermissionID: "permission:view_events",
	}
	for _, opt := range opts {
		opt(&o)
	}

	set := "name = $name, start_at = <datetime> $start, status_id = $status, is_deleted = $deleted"
	vars := map[string]interface{}{
		"name":    o.Name,
		"start":   o.StartAt.Format(time.RFC3339),
		"status":  o.StatusID,
		"deleted": o.Deleted,
	}
	if o.VisiblePermissionID != "" {
		set += ", visible_permission_id = $visible"
		vars["visible"] = o.VisiblePermissionID
	}
	if o.Deleted {
		set += ", deleted_at = time::now()"
	}
	return f.create(t, "event", set, vars)
}

// CreateEventTag creates an event tag
func (f *Factory) CreateEventTag(t *testing.T, text string) string {
	t.Helper()
	return f.create(t, "event_tag", "text = $text", map[string]interface{}{"text": text})
}

// TagEvent assigns tagID to eventID
func (f *Factory) TagEvent(t *testing.T, eventID, tagID string) {
	t.Helper()
	f.create(t, "event_tag_assignment", "event_id = $event, event_tag_id = $tag", map[string]interface{}{
		"event": eventID,
		"tag":   tagID,
	})
}

// ============================================================================
// Song Fixtures
// ============================================================================

// CreateSong creates a song visible to members
func (f *Factory) CreateSong(t *testing.T, name string) string {
	t.Helper()
	return f.create(t, "song", "name = $name, visible_permission_id = $visible", map[string]interface{}{
		"name":    name,
		"visible": "permission:view_songs",
	})
}

// ============================================================================
// File Fixtures
// ============================================================================

// CreateFile creates a file row without content
func (f *Factory) CreateFile(t *testing.T, leafName string) string {
	t.Helper()
	return f.create(t, "file", "file_leaf_name = $name, visible_permission_id = $visible", map[string]interface{}{
		"name":    leafName,
		"visible": "permission:view_files",
	})
}

// ============================================================================
// Custom Link Fixtures
// ============================================================================

// LinkOpts customizes custom link creation
type LinkOpts struct {
	RedirectType        string
	ForwardQuery        bool
	VisiblePermissionID string
}

// WithRedirectType sets "permanent", "temporary" or "client".
func WithRedirectType(kind string) func(*LinkOpts) {
	return func(o *LinkOpts) { o.RedirectType = kind }
}

// WithForwardQuery appends the request query to the destination.
func WithForwardQuery() func(*LinkOpts) {
	return func(o *LinkOpts) { o.ForwardQuery = true }
}

// WithLinkVisibility restricts the link to holders of a permission.
func WithLinkVisibility(permissionID string) func(*LinkOpts) {
	return func(o *LinkOpts) { o.VisiblePermissionID = permissionID }
}

// CreateCustomLink creates a short link from slug to destination
func (f *Factory) CreateCustomLink(t *testing.T, slug, destination string, opts ...func(*LinkOpts)) string {
	t.Helper()

	o := LinkOpts{RedirectType: "temporary"}
	for _, opt := range opts {
		opt(&o)
	}

	set := "slug = $slug, destination_url = $dest, redirect_type = $kind, forward_query = $forward"
	vars := map[string]interface{}{
		"slug":    slug,
		"dest":    destination,
		"kind":    o.RedirectType,
		"forward": o.ForwardQuery,
	}
	if o.VisiblePermissionID != "" {
		set += ", visible_permission_id = $visible"
		vars["visible"] = o.VisiblePermissionID
	}
	return f.create(t, "custom_link", set, vars)
}
