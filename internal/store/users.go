// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/compassioncourse/ccms-go/internal/model"
)

const userColumns = `id, email, password_hash, role, name, is_active,
	failed_logins, locked_until, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Name,
		&u.IsActive,
		&u.FailedLogins,
		&u.LockedUntil,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// IsUniqueViolation reports whether err is a SQLite unique constraint
// failure on the given column (e.g. "users.email").
func IsUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// CreateUserParams holds fields for CreateUser.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Role         model.Role
	Name         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUser inserts a user and returns the stored record.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role, name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		arg.Email, arg.PasswordHash, arg.Role, arg.Name, arg.IsActive, arg.CreatedAt, arg.UpdatedAt,
	)
	return scanUser(row)
}

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail fetches a user by normalized email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListUsersParams filters and paginates ListUsers.
type ListUsersParams struct {
	Role   model.Role // empty: any role
	Active *bool      // nil: any
	Limit  int64
	Offset int64
}

func (p ListUsersParams) where() (string, []any) {
	var conds []string
	var args []any
	if p.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, p.Role)
	}
	if p.Active != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *p.Active)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListUsers returns users matching the filter, newest first.
func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]model.User, error) {
	where, args := arg.where()
	args = append(args, arg.Limit, arg.Offset)

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of users matching the filter.
func (q *Queries) CountUsers(ctx context.Context, arg ListUsersParams) (int64, error) {
	where, args := arg.where()
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`+where, args...).Scan(&count)
	return count, err
}

// CountUsersCreatedSince returns the number of active users created after t.
func (q *Queries) CountUsersCreatedSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE is_active = 1 AND created_at >= ?`, t,
	).Scan(&count)
	return count, err
}

// UpdateUserPasswordParams holds fields for UpdateUserPassword.
type UpdateUserPasswordParams struct {
	PasswordHash string
	UpdatedAt    time.Time
	ID           int64
}

// UpdateUserPassword replaces the stored credential hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		arg.PasswordHash, arg.UpdatedAt, arg.ID,
	)
	return err
}

// UpdateUserNameParams holds fields for UpdateUserName.
type UpdateUserNameParams struct {
	Name      string
	UpdatedAt time.Time
	ID        int64
}

// UpdateUserName updates the display name.
func (q *Queries) UpdateUserName(ctx context.Context, arg UpdateUserNameParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`,
		arg.Name, arg.UpdatedAt, arg.ID,
	)
	return err
}

// UpdateUserLoginTrackingParams holds lockout counter fields.
type UpdateUserLoginTrackingParams struct {
	FailedLogins int64
	LockedUntil  sql.NullTime
	ID           int64
}

// UpdateUserLoginTracking writes the failed-login counter and lockout
// timestamp. Deliberately does not touch updated_at: a failed attempt is
// not a profile edit.
func (q *Queries) UpdateUserLoginTracking(ctx context.Context, arg UpdateUserLoginTrackingParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET failed_logins = ?, locked_until = ? WHERE id = ?`,
		arg.FailedLogins, arg.LockedUntil, arg.ID,
	)
	return err
}

// ResetUserLoginTracking clears the failed-login counter and lockout and
// stamps the last successful login.
func (q *Queries) ResetUserLoginTracking(ctx context.Context, id int64, lastLogin time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET failed_logins = 0, locked_until = NULL, last_login_at = ? WHERE id = ?`,
		lastLogin, id,
	)
	return err
}

// SetUserActiveParams holds fields for SetUserActive.
type SetUserActiveParams struct {
	IsActive  bool
	UpdatedAt time.Time
	ID        int64
}

// SetUserActive toggles the soft-deactivation flag.
func (q *Queries) SetUserActive(ctx context.Context, arg SetUserActiveParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		arg.IsActive, arg.UpdatedAt, arg.ID,
	)
	return err
}

// UpdateUserRoleParams holds fields for UpdateUserRole.
type UpdateUserRoleParams struct {
	Role      model.Role
	UpdatedAt time.Time
	ID        int64
}

// UpdateUserRole changes the user's role.
func (q *Queries) UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		arg.Role, arg.UpdatedAt, arg.ID,
	)
	return err
}
