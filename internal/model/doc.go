// Package model holds the request and response shapes of the HTTP API, the
// permission names roles grant, and RFC 9457 problem details.
//
// Rows themselves are not modeled as structs: every table is described by an
// xtable.Table and travels as xtable.Row. The types here wrap those rows for
// the wire:
//
//	type TableQueryResult struct {
//	    Rows     []xtable.Row `json:"rows"`
//	    Total    int          `json:"total"`
//	    Page     int          `json:"page"`
//	    PageSize int          `json:"page_size"`
//	}
package model
