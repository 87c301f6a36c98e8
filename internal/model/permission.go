package model

import "github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"

// Permissions granted through roles. The record id of each permission row is
// "permission:<name>", which is what visible_permission_id columns hold.
const (
	PermPublic xtable.Permission = ""

	PermLogin             xtable.Permission = "login"
	PermViewEvents        xtable.Permission = "view_events"
	PermManageEvents      xtable.Permission = "manage_events"
	PermViewSongs         xtable.Permission = "view_songs"
	PermManageSongs       xtable.Permission = "manage_songs"
	PermViewFiles         xtable.Permission = "view_files"
	PermManageFiles       xtable.Permission = "manage_files"
	PermViewWiki          xtable.Permission = "view_wiki"
	PermEditWiki          xtable.Permission = "edit_wiki"
	PermViewUsers         xtable.Permission = "view_users"
	PermManageUsers       xtable.Permission = "manage_users"
	PermManagePermissions xtable.Permission = "manage_permissions"
	PermCustomizeMenu     xtable.Permission = "customize_menu"
	PermManageCustomLinks xtable.Permission = "manage_custom_links"
	PermViewAdminNotes    xtable.Permission = "view_admin_notes"
)

// AllPermissions lists every permission in seed order.
var AllPermissions = []xtable.Permission{
	PermLogin,
	PermViewEvents, PermManageEvents,
	PermViewSongs, PermManageSongs,
	PermViewFiles, PermManageFiles,
	PermViewWiki, PermEditWiki,
	PermViewUsers, PermManageUsers,
	PermManagePermissions,
	PermCustomizeMenu,
	PermManageCustomLinks,
	PermViewAdminNotes,
}
