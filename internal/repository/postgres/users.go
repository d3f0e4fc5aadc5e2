package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

var userConstraints = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row. A unique violation surfaces as a
// DuplicateFieldError naming the colliding column.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var secretValue any
	if user.TOTPSecret != nil && *user.TOTPSecret != "" {
		secretValue = *user.TOTPSecret
	}

	query := r.builder.Insert("driplytics.users").
		Columns(
			"id",
			"username",
			"email",
			"password_hash",
			"password_algo",
			"totp_secret",
			"two_factor_enabled",
			"created_at",
		).
		Values(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.PasswordAlgo,
			secretValue,
			user.TwoFactorEnabled,
			user.CreatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if translated := translateUniqueViolation(err, userConstraints); translated != err {
			return translated
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *UserRepository) selectUser() squirrel.SelectBuilder {
	return r.builder.Select(
		"id",
		"username",
		"email",
		"password_hash",
		"password_algo",
		"totp_secret",
		"two_factor_enabled",
		"created_at",
	).From("driplytics.users")
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		secret sql.NullString
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordAlgo,
		&secret,
		&user.TwoFactorEnabled,
		&user.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if secret.Valid {
		val := secret.String
		user.TOTPSecret = &val
	}

	return &user, nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.selectUser().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.selectUser().
		Where(squirrel.Expr("LOWER(email) = LOWER(?)", strings.TrimSpace(email))).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by email sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// ExistsByUsernameOrEmail reports whether any user holds the username or
// email. Advisory only; the unique constraints are the backstop.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		From("driplytics.users").
		Where(squirrel.Or{
			squirrel.Eq{"username": username},
			squirrel.Expr("LOWER(email) = LOWER(?)", email),
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("scan exists: %w", err)
	}

	return true, nil
}

// UpdateProfile modifies the mutable identity fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, username, email string) error {
	stmt, args, err := r.builder.Update("driplytics.users").
		Set("username", username).
		Set("email", email).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if translated := translateUniqueViolation(err, userConstraints); translated != err {
			return translated
		}
		return fmt.Errorf("update profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword overwrites a user's password hash and algorithm tag.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash, passwordAlgo string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("driplytics.users").
		Set("password_hash", passwordHash).
		Set("password_algo", passwordAlgo).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetTOTPSecret stores a pending secret without enabling two-factor.
func (r *UserRepository) SetTOTPSecret(ctx context.Context, id string, secret string) error {
	stmt, args, err := r.builder.Update("driplytics.users").
		Set("totp_secret", secret).
		Set("two_factor_enabled", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set totp secret sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// EnableTwoFactor flips the enabled flag for an account with a pending
// secret. The WHERE clause guards against enabling without one.
func (r *UserRepository) EnableTwoFactor(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("driplytics.users").
		Set("two_factor_enabled", true).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.NotEq{"totp_secret": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build enable two factor sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("enable two factor: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ClearTwoFactor removes the secret and disables the flag in one statement.
func (r *UserRepository) ClearTwoFactor(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("driplytics.users").
		Set("totp_secret", nil).
		Set("two_factor_enabled", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear two factor sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear two factor: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
