package xtable

import (
	"sort"
	"strings"
)

// Permission names a capability granted through roles.
type Permission string

// PermissionRecordPrefix is the table permission rows live in. Rows that gate
// visibility reference a permission by its record id, e.g. "permission:view_events".
const PermissionRecordPrefix = "permission:"

// RecordID returns the record id of the permission row.
func (p Permission) RecordID() string {
	return PermissionRecordPrefix + string(p)
}

// PermissionFromRecordID reverses RecordID.
func PermissionFromRecordID(id string) Permission {
	return Permission(strings.TrimPrefix(id, PermissionRecordPrefix))
}

// Intention is the view the caller asked for. Admin intention unlocks
// soft-deleted rows and is only honored for sysadmins.
type Intention string

const (
	IntentionPublic Intention = "public"
	IntentionUser   Intention = "user"
	IntentionAdmin  Intention = "admin"
)

// ParseIntention maps a header value to an Intention, defaulting to user.
func ParseIntention(s string) Intention {
	switch Intention(strings.ToLower(strings.TrimSpace(s))) {
	case IntentionPublic:
		return IntentionPublic
	case IntentionAdmin:
		return IntentionAdmin
	default:
		return IntentionUser
	}
}

// Principal is the acting user as seen by permission checks.
type Principal struct {
	UserID      string
	IsSysAdmin  bool
	Intention   Intention
	Permissions map[Permission]struct{}
}

// Anonymous returns the principal used when no user is identified.
func Anonymous() *Principal {
	return &Principal{Intention: IntentionPublic, Permissions: map[Permission]struct{}{}}
}

// NewPrincipal builds a user principal holding perms.
func NewPrincipal(userID string, sysAdmin bool, perms ...Permission) *Principal {
	p := &Principal{
		UserID:      userID,
		IsSysAdmin:  sysAdmin,
		Intention:   IntentionUser,
		Permissions: make(map[Permission]struct{}, len(perms)),
	}
	for _, perm := range perms {
		if perm != "" {
			p.Permissions[perm] = struct{}{}
		}
	}
	return p
}

// Has reports whether the principal holds perm. The empty permission is
// granted to everyone and sysadmins hold every permission.
func (p *Principal) Has(perm Permission) bool {
	if perm == "" {
		return true
	}
	if p == nil {
		return false
	}
	if p.IsSysAdmin {
		return true
	}
	_, ok := p.Permissions[perm]
	return ok
}

// IsAnonymous reports whether no user is attached.
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.UserID == ""
}

// PermissionList returns held permissions in sorted order.
func (p *Principal) PermissionList() []Permission {
	if p == nil {
		return nil
	}
	out := make([]Permission, 0, len(p.Permissions))
	for perm := range p.Permissions {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WithIntention returns a copy using intention i. Admin is downgraded to
// user for anyone but a sysadmin; public strips the user's permissions.
func (p *Principal) WithIntention(i Intention) *Principal {
	if p == nil {
		return Anonymous()
	}
	cp := *p
	switch i {
	case IntentionAdmin:
		if p.IsSysAdmin {
			cp.Intention = IntentionAdmin
		} else {
			cp.Intention = IntentionUser
		}
	case IntentionPublic:
		cp.Intention = IntentionPublic
		cp.IsSysAdmin = false
		cp.Permissions = map[Permission]struct{}{}
	default:
		cp.Intention = IntentionUser
	}
	return &cp
}
