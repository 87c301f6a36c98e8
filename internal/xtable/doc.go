// Package xtable describes database tables declaratively so one description
// can drive validation, client rendering and query building.
//
// A Table is a list of Fields plus table-level permissions. Each Field knows
// how to parse a client value, how to present a stored value to the client,
// how to compare two values and how to contribute to a quick-search clause.
// The server never trusts the client's idea of which columns exist: every
// mutation is parsed through ParseMutation and every row leaving the server
// goes through ToClient, both of which apply the caller's permissions.
//
// # Building tables
//
//	events := &xtable.Table{
//	    Name:  "event",
//	    Label: "Events",
//	    View:  model.PermViewEvents,
//	    Edit:  model.PermManageEvents,
//	    Fields: []xtable.Field{
//	        xtable.PK(),
//	        &xtable.StringField{Common: xtable.Common{Name: "name", Caption: "Name",
//	            Bits: xtable.BitRequired | xtable.BitSort | xtable.BitSearch}, Format: xtable.FormatTitle},
//	        xtable.Tags("tags", "Tags", changeplan.Spec{...}),
//	    },
//	    NaturalOrder: []xtable.Order{{Member: "start_at", Desc: true}},
//	}
//
// # Queries
//
// Where and BuildSelect produce SurrealQL with bound variables. Column and
// table names are never taken from the request; they come from validated
// Table definitions.
package xtable
