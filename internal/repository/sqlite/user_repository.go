package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	plan TEXT NOT NULL,
	status TEXT NOT NULL,
	custom_permissions TEXT NOT NULL DEFAULT '[]',
	expiration_date DATETIME NULL,
	must_change_password INTEGER NOT NULL DEFAULT 0,
	hotmart_customer_id TEXT NOT NULL DEFAULT '',
	last_login DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_plan_status ON users(plan, status);
`

const userColumns = `id, email, first_name, last_name, password_hash, plan, status, custom_permissions, expiration_date, must_change_password, hotmart_customer_id, last_login, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	perms, err := encodePermissions(user.CustomPermissions)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (email, first_name, last_name, password_hash, plan, status, custom_permissions, expiration_date, must_change_password, hotmart_customer_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		string(user.Plan),
		string(user.Status),
		perms,
		nullTime(user.ExpirationDate),
		boolToInt(user.MustChangePassword),
		user.HotmartCustomerID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %s: %w", user.Email, repository.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	perms, err := encodePermissions(user.CustomPermissions)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET email=?, first_name=?, last_name=?, plan=?, status=?, custom_permissions=?, expiration_date=?, must_change_password=?, hotmart_customer_id=?, updated_at=?
WHERE id=?`,
		user.Email,
		user.FirstName,
		user.LastName,
		string(user.Plan),
		string(user.Status),
		perms,
		nullTime(user.ExpirationDate),
		boolToInt(user.MustChangePassword),
		user.HotmartCustomerID,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res, "user")
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string, mustChange bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET password_hash=?, must_change_password=?, updated_at=?
WHERE id=?`,
		hash,
		boolToInt(mustChange),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(res, "user")
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login=? WHERE id=?`, at.UTC(), id); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res, "user")
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	where, args := userWhere(filter)
	order := ` ORDER BY created_at DESC, id DESC`
	if filter.OrderByID {
		order = ` ORDER BY id DESC`
	}
	query := `SELECT ` + userColumns + ` FROM users` + where + order
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context, filter repository.UserFilter) (int, error) {
	where, args := userWhere(filter)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func userWhere(filter repository.UserFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Plan != "" {
		clauses = append(clauses, "plan = ?")
		args = append(args, string(filter.Plan))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		clauses = append(clauses, "(LOWER(email) LIKE ? OR LOWER(first_name || ' ' || last_name) LIKE ?)")
		args = append(args, like, like)
	}
	if filter.BeforeID > 0 {
		clauses = append(clauses, "id < ?")
		args = append(args, filter.BeforeID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		user       domain.User
		plan       string
		status     string
		perms      string
		expiration sql.NullTime
		mustChange int
		lastLogin  sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&plan,
		&status,
		&perms,
		&expiration,
		&mustChange,
		&user.HotmartCustomerID,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Plan = domain.Plan(plan)
	user.Status = domain.UserStatus(status)
	user.MustChangePassword = mustChange != 0
	user.ExpirationDate = timePtr(expiration)
	user.LastLogin = timePtr(lastLogin)
	if err := json.Unmarshal([]byte(perms), &user.CustomPermissions); err != nil {
		return nil, fmt.Errorf("decode custom permissions: %w", err)
	}
	return &user, nil
}

func encodePermissions(perms []string) (string, error) {
	if perms == nil {
		perms = []string{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("encode custom permissions: %w", err)
	}
	return string(b), nil
}

func expectAffected(res sql.Result, what string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if aff == 0 {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return nil
}
