package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// UserRepository loads users as permission principals.
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// GetPrincipal loads a user and the permissions of its role. Unknown and
// deleted users return database.ErrNotFound.
func (r *UserRepository) GetPrincipal(ctx context.Context, userID string) (*xtable.Principal, error) {
	recordID, ok := xtable.QualifyID("user", userID)
	if !ok {
		return nil, database.ErrNotFound
	}

	result, err := r.db.QueryOne(ctx, `SELECT id, role_id, is_sys_admin, is_deleted FROM type::record($id)`,
		map[string]interface{}{"id": recordID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, database.ErrNotFound
	}
	if deleted, _ := row["is_deleted"].(bool); deleted {
		return nil, database.ErrNotFound
	}

	sysAdmin, _ := row["is_sys_admin"].(bool)
	var perms []xtable.Permission
	if roleID := xtable.RecordIDString(row["role_id"]); roleID != "" {
		perms, err = r.RolePermissions(ctx, roleID)
		if err != nil {
			return nil, err
		}
	}
	return xtable.NewPrincipal(recordID, sysAdmin, perms...), nil
}

// PromoteSysAdmin makes the user with email a sysadmin holding roleID,
// creating the user when none exists. It returns the user id and whether the
// user was created.
func (r *UserRepository) PromoteSysAdmin(ctx context.Context, email, name, roleID string) (string, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	results, err := r.db.Query(ctx, `SELECT id FROM user WHERE email = $email LIMIT 1`,
		map[string]interface{}{"email": email})
	if err != nil {
		return "", false, fmt.Errorf("failed to find user: %w", err)
	}

	vars := map[string]interface{}{"role": roleID}
	if rows := statementRows(results, 0); len(rows) > 0 {
		id := xtable.RecordIDString(rows[0]["id"])
		vars["id"] = id
		err := r.db.Execute(ctx,
			`UPDATE type::record($id) SET is_sys_admin = true, is_deleted = false, deleted_at = NONE, role_id = $role`, vars)
		if err != nil {
			return "", false, fmt.Errorf("failed to promote user: %w", err)
		}
		return id, false, nil
	}

	if name == "" {
		name = email
	}
	vars["email"] = email
	vars["name"] = name
	vars["email_folded"] = xtable.Fold(email)
	vars["name_folded"] = xtable.Fold(name)
	result, err := r.db.QueryOne(ctx, `
		CREATE user SET
			name = $name,
			name_folded = $name_folded,
			email = $email,
			email_folded = $email_folded,
			role_id = $role,
			is_sys_admin = true
	`, vars)
	if err != nil {
		return "", false, fmt.Errorf("failed to create user: %w", err)
	}
	row, _ := result.(map[string]interface{})
	return xtable.RecordIDString(row["id"]), true, nil
}

// RolePermissions lists the permissions granted to a role.
func (r *UserRepository) RolePermissions(ctx context.Context, roleID string) ([]xtable.Permission, error) {
	results, err := r.db.Query(ctx,
		`SELECT VALUE permission_id FROM role_permission WHERE role_id = $role`,
		map[string]interface{}{"role": roleID})
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}

	values := statementValues(results, 0)
	perms := make([]xtable.Permission, 0, len(values))
	for _, v := range values {
		if id := xtable.RecordIDString(v); id != "" {
			perms = append(perms, xtable.PermissionFromRecordID(id))
		}
	}
	return perms, nil
}
