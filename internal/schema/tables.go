package schema

import (
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

func eventTable() *xtable.Table {
	return &xtable.Table{
		Name:  "event",
		Label: "Events",
		View:  model.PermViewEvents,
		Edit:  model.PermManageEvents,
		Fields: []xtable.Field{
			xtable.PK(),
			name("name", "Name", xtable.BitRequired),
			slug(),
			markdown("description", "Description"),
			&xtable.StringField{Common: xtable.Common{Name: "location", Caption: "Location", Bits: xtable.BitNull | xtable.BitSearch | xtable.BitFilter}, MaxLength: 300},
			&xtable.DateTimeField{Common: xtable.Common{Name: "start_at", Caption: "Starts", Bits: xtable.BitSort | xtable.BitFilter}},
			&xtable.DateTimeField{Common: xtable.Common{Name: "end_at", Caption: "Ends", Bits: xtable.BitSort | xtable.BitFilter}},
			&xtable.IntField{Common: xtable.Common{Name: "expected_attendance", Caption: "Expected attendance", Bits: xtable.BitNull | xtable.BitSort}, Min: xtable.Int64(0)},
			foreign("type_id", "Type", "event_type", xtable.BitNull),
			foreign("status_id", "Status", "event_status", xtable.BitNull),
			visiblePermission(),
			xtable.Tags("tags", "Tags", EventTags),
			softDelete(),
			xtable.CreatedAt(),
		},
		NaturalOrder:            []xtable.Order{{Member: "start_at", Desc: true}},
		SoftDeleteMember:        "is_deleted",
		VisiblePermissionMember: "visible_permission_id",
		SlugSource:              "name",
		LabelMember:             "name",
	}
}

func eventTypeTable() *xtable.Table {
	return tagTable("event_type", "Event types", model.PermViewEvents, model.PermManageEvents)
}

func eventStatusTable() *xtable.Table {
	return tagTable("event_status", "Event statuses", model.PermViewEvents, model.PermManageEvents,
		&xtable.EnumField{
			Common:  xtable.Common{Name: "significance", Caption: "Significance", Bits: xtable.BitFilter},
			Options: []string{"none", "cancelled", "confirmed"},
			Initial: "none",
		})
}

func songTable() *xtable.Table {
	bpm := func(member, caption string) *xtable.IntField {
		return &xtable.IntField{
			Common: xtable.Common{Name: member, Caption: caption, Bits: xtable.BitNull | xtable.BitSort | xtable.BitFilter | xtable.BitSearch, Width: 80},
			Min:    xtable.Int64(1),
			Max:    xtable.Int64(400),
		}
	}
	return &xtable.Table{
		Name:  "song",
		Label: "Songs",
		View:  model.PermViewSongs,
		Edit:  model.PermManageSongs,
		Fields: []xtable.Field{
			xtable.PK(),
			name("name", "Name", xtable.BitRequired),
			slug(),
			&xtable.StringField{Common: xtable.Common{Name: "aliases", Caption: "Aliases", Bits: xtable.BitSearch}, MaxLength: 500},
			markdown("description", "Description"),
			bpm("start_bpm", "Start BPM"),
			bpm("end_bpm", "End BPM"),
			&xtable.IntField{Common: xtable.Common{Name: "length_seconds", Caption: "Length (s)", Bits: xtable.BitNull | xtable.BitSort}, Min: xtable.Int64(0)},
			&xtable.CalculatedField{Common: xtable.Common{Name: "length_display", Caption: "Length"}, Type: xtable.KindString, Compute: lengthDisplay},
			&xtable.IntField{Common: xtable.Common{Name: "introduced_year", Caption: "Introduced", Bits: xtable.BitNull | xtable.BitSort | xtable.BitFilter}, Min: xtable.Int64(1900), Max: xtable.Int64(2200)},
			visiblePermission(),
			xtable.Tags("tags", "Tags", SongTags),
			softDelete(),
			xtable.CreatedAt(),
		},
		NaturalOrder:            []xtable.Order{{Member: "name"}},
		SoftDeleteMember:        "is_deleted",
		VisiblePermissionMember: "visible_permission_id",
		SlugSource:              "name",
		LabelMember:             "name",
	}
}

func fileTable() *xtable.Table {
	storage := xtable.AuthMap{View: model.PermManageFiles}
	return &xtable.Table{
		Name:  "file",
		Label: "Files",
		View:  model.PermViewFiles,
		Edit:  model.PermManageFiles,
		Fields: []xtable.Field{
			xtable.PK(),
			name("file_leaf_name", "File name", xtable.BitRequired),
			markdown("description", "Description"),
			&xtable.StringField{Common: xtable.Common{Name: "blob_key", Caption: "Storage key", Bits: xtable.BitReadOnly | xtable.BitNull, Access: storage}, Format: xtable.FormatRaw},
			&xtable.IntField{Common: xtable.Common{Name: "size_bytes", Caption: "Size", Bits: xtable.BitReadOnly | xtable.BitNull | xtable.BitSort}},
			&xtable.StringField{Common: xtable.Common{Name: "mime_type", Caption: "Type", Bits: xtable.BitReadOnly | xtable.BitNull | xtable.BitFilter}, Format: xtable.FormatRaw},
			&xtable.DateTimeField{Common: xtable.Common{Name: "content_updated_at", Caption: "Uploaded", Bits: xtable.BitReadOnly | xtable.BitSort}},
			visiblePermission(),
			xtable.Tags("tags", "Tags", FileTags),
			xtable.Tags("events", "Events", FileEvents),
			xtable.Tags("songs", "Songs", FileSongs),
			softDelete(),
			xtable.CreatedAt(),
		},
		NaturalOrder:            []xtable.Order{{Member: "created_at", Desc: true}},
		SoftDeleteMember:        "is_deleted",
		VisiblePermissionMember: "visible_permission_id",
		LabelMember:             "file_leaf_name",
	}
}

func userTable() *xtable.Table {
	private := xtable.AuthMap{View: model.PermManageUsers}
	return &xtable.Table{
		Name:  TableUser,
		Label: "Users",
		View:  model.PermViewUsers,
		Edit:  model.PermManageUsers,
		Fields: []xtable.Field{
			xtable.PK(),
			&xtable.StringField{
				Common:    xtable.Common{Name: "name", Caption: "Name", Bits: xtable.BitRequired | xtable.BitSort | xtable.BitFilter | xtable.BitSearch, Width: 200},
				Format:    xtable.FormatName,
				MaxLength: 120,
			},
			&xtable.StringField{Common: xtable.Common{Name: "email", Caption: "Email", Bits: xtable.BitRequired | xtable.BitSort | xtable.BitSearch, Access: private}, Format: xtable.FormatEmail},
			&xtable.StringField{Common: xtable.Common{Name: "phone", Caption: "Phone", Bits: xtable.BitNull, Access: private}, MaxLength: 40},
			foreign("role_id", "Role", "role", xtable.BitNull),
			&xtable.BoolField{Common: xtable.Common{Name: "is_sys_admin", Caption: "Sysadmin", Bits: xtable.BitFilter,
				Access: xtable.AuthMap{View: model.PermManagePermissions, Edit: model.PermManagePermissions}}},
			xtable.Tags("tags", "Tags", UserTags),
			softDelete(),
			xtable.CreatedAt(),
		},
		NaturalOrder:     []xtable.Order{{Member: "name"}},
		SoftDeleteMember: "is_deleted",
		LabelMember:      "name",
	}
}

func roleTable() *xtable.Table {
	return &xtable.Table{
		Name:  "role",
		Label: "Roles",
		View:  model.PermViewUsers,
		Edit:  model.PermManagePermissions,
		Fields: []xtable.Field{
			xtable.PK(),
			name("name", "Name", xtable.BitRequired),
			markdown("description", "Description"),
			&xtable.BoolField{Common: xtable.Common{Name: "is_role_for_new_users", Caption: "Default for new users"}},
			xtable.SortOrder(),
			xtable.Tags("permissions", "Permissions", RolePermissions),
		},
		NaturalOrder: []xtable.Order{{Member: "sort_order"}, {Member: "name"}},
		LabelMember:  "name",
	}
}

func permissionTable() *xtable.Table {
	return &xtable.Table{
		Name:  "permission",
		Label: "Permissions",
		View:  model.PermLogin,
		Edit:  model.PermManagePermissions,
		Fields: []xtable.Field{
			xtable.PK(),
			&xtable.StringField{Common: xtable.Common{Name: "name", Caption: "Name", Bits: xtable.BitRequired | xtable.BitSort | xtable.BitSearch}, Format: xtable.FormatIdent, MaxLength: 60},
			markdown("description", "Description"),
			&xtable.BoolField{Common: xtable.Common{Name: "is_visibility", Caption: "Usable for visibility", Bits: xtable.BitFilter}},
			color(),
			xtable.SortOrder(),
		},
		NaturalOrder: []xtable.Order{{Member: "sort_order"}, {Member: "name"}},
		KeyMember:    "name",
		LabelMember:  "name",
		ColorMember:  "color",
	}
}

func wikiPageTable() *xtable.Table {
	return &xtable.Table{
		Name:  "wiki_page",
		Label: "Wiki pages",
		View:  model.PermViewWiki,
		Edit:  model.PermEditWiki,
		Fields: []xtable.Field{
			xtable.PK(),
			slug(),
			name("title", "Title", xtable.BitRequired),
			markdown("body", "Body"),
			visiblePermission(),
			xtable.CreatedAt(),
		},
		NaturalOrder:            []xtable.Order{{Member: "slug"}},
		VisiblePermissionMember: "visible_permission_id",
		SlugSource:              "title",
		LabelMember:             "title",
	}
}

func menuLinkTable() *xtable.Table {
	return &xtable.Table{
		Name:  "menu_link",
		Label: "Menu links",
		View:  model.PermPublic,
		Edit:  model.PermCustomizeMenu,
		Fields: []xtable.Field{
			xtable.PK(),
			name("caption", "Caption", xtable.BitRequired),
			&xtable.EnumField{
				Common:  xtable.Common{Name: "link_type", Caption: "Link type", Bits: xtable.BitFilter},
				Options: []string{"external", "wiki", "event", "song"},
				Initial: "external",
			},
			&xtable.StringField{Common: xtable.Common{Name: "href", Caption: "Target", Bits: xtable.BitRequired}, Format: xtable.FormatURL},
			&xtable.StringField{Common: xtable.Common{Name: "group_name", Caption: "Group", Bits: xtable.BitSort | xtable.BitFilter | xtable.BitSearch}, MaxLength: 80},
			&xtable.StringField{Common: xtable.Common{Name: "icon", Caption: "Icon", Bits: xtable.BitNull}, Format: xtable.FormatSlug},
			xtable.SortOrder(),
			visiblePermission(),
		},
		NaturalOrder:            []xtable.Order{{Member: "group_name"}, {Member: "sort_order"}},
		VisiblePermissionMember: "visible_permission_id",
		LabelMember:             "caption",
	}
}

func customLinkTable() *xtable.Table {
	return &xtable.Table{
		Name:  TableCustomLink,
		Label: "Custom links",
		View:  model.PermManageCustomLinks,
		Edit:  model.PermManageCustomLinks,
		Fields: []xtable.Field{
			xtable.PK(),
			&xtable.StringField{Common: xtable.Common{Name: xtable.SlugMember, Caption: "Slug", Bits: xtable.BitRequired | xtable.BitSort | xtable.BitSearch}, Format: xtable.FormatSlug, MaxLength: 120},
			name("name", "Name", 0),
			&xtable.StringField{Common: xtable.Common{Name: "destination_url", Caption: "Destination", Bits: xtable.BitRequired | xtable.BitSearch}, Format: xtable.FormatURL},
			&xtable.EnumField{
				Common:  xtable.Common{Name: "redirect_type", Caption: "Redirect", Bits: xtable.BitFilter},
				Options: []string{"permanent", "temporary", "client"},
				Initial: "temporary",
			},
			&xtable.BoolField{Common: xtable.Common{Name: "forward_query", Caption: "Forward query string"}},
			visiblePermission(),
			xtable.CreatedAt(),
		},
		NaturalOrder:            []xtable.Order{{Member: "slug"}},
		VisiblePermissionMember: "visible_permission_id",
		LabelMember:             "name",
	}
}
