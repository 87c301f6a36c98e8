package xtable

import "github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"

const (
	permView   Permission = "view_events"
	permEdit   Permission = "manage_events"
	permSecret Permission = "view_event_notes"
)

func eventTable() *Table {
	return &Table{
		Name:  "event",
		Label: "Events",
		View:  permView,
		Edit:  permEdit,
		Fields: []Field{
			PK(),
			&StringField{Common: Common{Name: "name", Caption: "Name", Bits: BitRequired | BitSort | BitFilter | BitSearch}, Format: FormatTitle, MaxLength: 20},
			&StringField{Common: Common{Name: "slug", Bits: BitSort}, Format: FormatSlug},
			&StringField{Common: Common{Name: "location", Bits: BitSearch | BitFilter | BitNull}},
			&StringField{Common: Common{Name: "notes", Access: AuthMap{View: permSecret, Edit: permSecret}}, Format: FormatMarkdown},
			&IntField{Common: Common{Name: "capacity", Bits: BitFilter | BitSort | BitNull}, Min: Int64(0), Max: Int64(1000)},
			&BoolField{Common: Common{Name: "is_deleted"}},
			&DateTimeField{Common: Common{Name: "start_at", Bits: BitSort | BitFilter}},
			&EnumField{Common: Common{Name: "visibility"}, Options: []string{"band", "public"}, Initial: "band"},
			&ColorField{Common: Common{Name: "color"}, Palette: []string{"red", "blue"}},
			&ForeignSingleField{Common: Common{Name: "status_id", Bits: BitFilter | BitNull}, ForeignTable: "event_status"},
			&ForeignSingleField{Common: Common{Name: "visible_permission_id", Bits: BitNull}, ForeignTable: "permission"},
			Tags("tags", "Tags", changeplan.Spec{
				Table:        "event_tag_assignment",
				LocalKey:     "event_id",
				ForeignKey:   "event_tag_id",
				ForeignTable: "event_tag",
			}),
			CreatedAt(),
			&CalculatedField{Common: Common{Name: "display"}, Type: KindString, Compute: func(db Row) any {
				name, _ := db["name"].(string)
				return "[" + name + "]"
			}},
		},
		NaturalOrder:            []Order{{Member: "start_at", Desc: true}},
		SoftDeleteMember:        "is_deleted",
		VisiblePermissionMember: "visible_permission_id",
		SlugSource:              "name",
		LabelMember:             "name",
	}
}

func editor() *Principal {
	return NewPrincipal("user:editor", false, permView, permEdit)
}

func viewer() *Principal {
	return NewPrincipal("user:viewer", false, permView)
}
