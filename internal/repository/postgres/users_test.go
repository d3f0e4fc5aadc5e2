package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	createdAt := time.Now().UTC()
	user := domain.User{
		ID:           "user-123",
		Username:     "kamal",
		Email:        "kamal@example.com",
		PasswordHash: "salt:hash",
		PasswordAlgo: "argon2id",
		CreatedAt:    createdAt,
	}

	mock.ExpectExec(`INSERT INTO driplytics\.users`).
		WithArgs(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.PasswordAlgo,
			nil,
			false,
			user.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`INSERT INTO driplytics\.users`).
		WithArgs(
			"user-123",
			"kamal",
			"taken@example.com",
			"salt:hash",
			"argon2id",
			nil,
			false,
			pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err = repo.Create(context.Background(), domain.User{
		ID:           "user-123",
		Username:     "kamal",
		Email:        "taken@example.com",
		PasswordHash: "salt:hash",
		PasswordAlgo: "argon2id",
	})

	var dup *repository.DuplicateFieldError
	if !errors.As(err, &dup) || dup.Field != "email" {
		t.Fatalf("expected DuplicateFieldError for email, got %v", err)
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatal("duplicate field error must match ErrDuplicate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func userColumns() []string {
	return []string{
		"id", "username", "email", "password_hash", "password_algo",
		"totp_secret", "two_factor_enabled", "created_at",
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	createdAt := time.Now().UTC()
	secret := "GEZDGNBVGY3TQOJQ"

	rows := pgxmock.NewRows(userColumns()).AddRow(
		"user-1", "kamal", "kamal@example.com", "salt:hash", "argon2id",
		secret, true, createdAt,
	)

	mock.ExpectQuery(`SELECT .*FROM driplytics\.users`).
		WithArgs("user-1").
		WillReturnRows(rows)

	user, err := repo.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if user.ID != "user-1" || user.Username != "kamal" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.TOTPSecret == nil || *user.TOTPSecret != secret {
		t.Fatal("expected the totp secret pointer populated")
	}
	if !user.TwoFactorEnabled {
		t.Fatal("expected two factor enabled")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM driplytics\.users`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	rows := pgxmock.NewRows(userColumns()).AddRow(
		"user-1", "kamal", "kamal@example.com", "salt:hash", "argon2id",
		nil, false, time.Now().UTC(),
	)

	mock.ExpectQuery(`SELECT .*FROM driplytics\.users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("kamal@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "  kamal@example.com  ")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.Email != "kamal@example.com" {
		t.Fatalf("unexpected email: %s", user.Email)
	}
	if user.TOTPSecret != nil {
		t.Fatal("expected nil totp secret for a null column")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ExistsByUsernameOrEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM driplytics\.users`).
		WithArgs("kamal", "kamal@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByUsernameOrEmail(context.Background(), "kamal", "kamal@example.com")
	if err != nil {
		t.Fatalf("ExistsByUsernameOrEmail returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}

	mock.ExpectQuery(`SELECT 1 FROM driplytics\.users`).
		WithArgs("nobody", "nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	exists, err = repo.ExistsByUsernameOrEmail(context.Background(), "nobody", "nobody@example.com")
	if err != nil {
		t.Fatalf("ExistsByUsernameOrEmail returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists to be false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE driplytics\.users`).
		WithArgs("newname", "new@example.com", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateProfile(context.Background(), "user-1", "newname", "new@example.com"); err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateProfileMissingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE driplytics\.users`).
		WithArgs("newname", "new@example.com", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateProfile(context.Background(), "ghost", "newname", "new@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	changedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE driplytics\.users`).
		WithArgs("new-salt:new-hash", "argon2id", changedAt, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdatePassword(context.Background(), "user-1", "new-salt:new-hash", "argon2id", changedAt); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_SetTOTPSecret(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE driplytics\.users`).
		WithArgs("GEZDGNBVGY3TQOJQ", false, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetTOTPSecret(context.Background(), "user-1", "GEZDGNBVGY3TQOJQ"); err != nil {
		t.Fatalf("SetTOTPSecret returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_EnableTwoFactorRequiresSecret(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	// No row matches when the account has no pending secret.
	mock.ExpectExec(`UPDATE driplytics\.users`).
		WithArgs(true, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.EnableTwoFactor(context.Background(), "user-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ClearTwoFactor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE driplytics\.users`).
		WithArgs(nil, false, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ClearTwoFactor(context.Background(), "user-1"); err != nil {
		t.Fatalf("ClearTwoFactor returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
