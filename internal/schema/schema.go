// Package schema declares the tables the server exposes.
package schema

import (
	"fmt"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// Palette is the set of named colors tags and statuses may use.
var Palette = []string{"red", "orange", "yellow", "green", "teal", "blue", "purple", "pink", "gray"}

// Association tables.
var (
	RolePermissions = changeplan.Spec{Table: "role_permission", LocalKey: "role_id", ForeignKey: "permission_id", ForeignTable: "permission"}
	UserTags        = changeplan.Spec{Table: "user_tag_assignment", LocalKey: "user_id", ForeignKey: "user_tag_id", ForeignTable: "user_tag"}
	EventTags       = changeplan.Spec{Table: "event_tag_assignment", LocalKey: "event_id", ForeignKey: "event_tag_id", ForeignTable: "event_tag"}
	SongTags        = changeplan.Spec{Table: "song_tag_assignment", LocalKey: "song_id", ForeignKey: "song_tag_id", ForeignTable: "song_tag"}
	FileTags        = changeplan.Spec{Table: "file_tag_assignment", LocalKey: "file_id", ForeignKey: "file_tag_id", ForeignTable: "file_tag"}
	FileEvents      = changeplan.Spec{Table: "file_event_assignment", LocalKey: "file_id", ForeignKey: "event_id", ForeignTable: "event"}
	FileSongs       = changeplan.Spec{Table: "file_song_assignment", LocalKey: "file_id", ForeignKey: "song_id", ForeignTable: "song"}
)

// Table names referenced outside this package.
const (
	TableUser       = "user"
	TableFile       = "file"
	TableCustomLink = "custom_link"
)

// New returns the registry of every table, in menu order.
func New() *xtable.Registry {
	return xtable.NewRegistry(
		eventTable(),
		eventTypeTable(),
		eventStatusTable(),
		tagTable("event_tag", "Event tags", model.PermViewEvents, model.PermManageEvents,
			&xtable.BoolField{Common: xtable.Common{Name: "visible_on_front_page", Caption: "Front page", Bits: xtable.BitFilter}}),
		songTable(),
		tagTable("song_tag", "Song tags", model.PermViewSongs, model.PermManageSongs,
			&xtable.BoolField{Common: xtable.Common{Name: "show_on_song_lists", Caption: "Show on lists", Bits: xtable.BitFilter}}),
		fileTable(),
		tagTable("file_tag", "File tags", model.PermViewFiles, model.PermManageFiles),
		userTable(),
		tagTable("user_tag", "User tags", model.PermViewUsers, model.PermManageUsers),
		roleTable(),
		permissionTable(),
		wikiPageTable(),
		menuLinkTable(),
		customLinkTable(),
	)
}

func name(member, caption string, bits xtable.Bit) *xtable.StringField {
	return &xtable.StringField{
		Common:    xtable.Common{Name: member, Caption: caption, Bits: bits | xtable.BitSort | xtable.BitFilter | xtable.BitSearch, Width: 220},
		Format:    xtable.FormatTitle,
		MaxLength: 200,
	}
}

func slug() *xtable.StringField {
	return &xtable.StringField{
		Common:    xtable.Common{Name: xtable.SlugMember, Caption: "Slug", Bits: xtable.BitSort | xtable.BitFilter},
		Format:    xtable.FormatSlug,
		MaxLength: 120,
	}
}

func markdown(member, caption string) *xtable.StringField {
	return &xtable.StringField{
		Common: xtable.Common{Name: member, Caption: caption, Bits: xtable.BitSearch},
		Format: xtable.FormatMarkdown,
	}
}

func color() *xtable.ColorField {
	return &xtable.ColorField{Common: xtable.Common{Name: "color", Caption: "Color", Bits: xtable.BitNull}, Palette: Palette}
}

func softDelete() *xtable.BoolField {
	return &xtable.BoolField{Common: xtable.Common{Name: "is_deleted", Caption: "Deleted", Bits: xtable.BitFilter | xtable.BitReadOnly}}
}

func visiblePermission() *xtable.ForeignSingleField {
	return &xtable.ForeignSingleField{
		Common:       xtable.Common{Name: "visible_permission_id", Caption: "Visible to", Bits: xtable.BitNull | xtable.BitFilter},
		ForeignTable: "permission",
	}
}

func foreign(member, caption, table string, bits xtable.Bit) *xtable.ForeignSingleField {
	return &xtable.ForeignSingleField{
		Common:       xtable.Common{Name: member, Caption: caption, Bits: bits | xtable.BitFilter},
		ForeignTable: table,
	}
}

// tagTable declares the text/description/color/sort_order shape shared by tag tables.
func tagTable(tableName, label string, view, edit xtable.Permission, extra ...xtable.Field) *xtable.Table {
	fields := []xtable.Field{
		xtable.PK(),
		name("text", "Text", xtable.BitRequired),
		markdown("description", "Description"),
		color(),
		xtable.SortOrder(),
	}
	return &xtable.Table{
		Name:         tableName,
		Label:        label,
		Fields:       append(fields, extra...),
		View:         view,
		Edit:         edit,
		NaturalOrder: []xtable.Order{{Member: "sort_order"}, {Member: "text"}},
		LabelMember:  "text",
		ColorMember:  "color",
	}
}

// lengthDisplay renders length_seconds as m:ss.
func lengthDisplay(db xtable.Row) any {
	secs, ok := xtable.AsInt64(db["length_seconds"])
	if !ok {
		return nil
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
