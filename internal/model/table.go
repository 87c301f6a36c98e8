package model

import (
	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// TableInfo describes a table the caller can see.
type TableInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	CanEdit bool   `json:"can_edit"`
}

// TableQueryResult is one page of rows.
type TableQueryResult struct {
	Rows     []xtable.Row `json:"rows"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// OptionItem is one choice offered by a foreign or tag picker.
type OptionItem struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Color      string `json:"color,omitempty"`
	UsageCount int    `json:"usage_count"`
}

// OptionsResponse lists the choices for one field.
type OptionsResponse struct {
	Table        string       `json:"table"`
	Member       string       `json:"member"`
	ForeignTable string       `json:"foreign_table"`
	Options      []OptionItem `json:"options"`
}

// SetAssociationsRequest replaces the ids linked through one association member.
type SetAssociationsRequest struct {
	IDs []string `json:"ids"`
}

// AssociationResult reports what a SetAssociations call changed.
type AssociationResult struct {
	Member string            `json:"member"`
	IDs    []string          `json:"ids"`
	Counts changeplan.Counts `json:"counts"`
}
