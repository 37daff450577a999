package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPGStore(db), mock
}

func TestPGUserFindByUsername(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`select id, username, role, password_hash, is_active, created_at, updated_at from users where username=$1`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "password_hash", "is_active", "created_at", "updated_at"}).
			AddRow("u1", "alice", "YOUTH", "$2a$hash", true, now, now))

	user, err := store.Users(context.Background()).FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if user.ID != "u1" || user.Role != RoleYouth || !user.IsActive {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestPGUserFindByUsernameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select .+ from users where username=\$1`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "password_hash", "is_active", "created_at", "updated_at"}))

	if _, err := store.Users(context.Background()).FindByUsername(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGUserCreateConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`insert into users(id, username, role, password_hash, is_active) values($1,$2,$3,$4,$5)`)).
		WithArgs("u1", "alice", "YOUTH", "$2a$hash", true).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := store.Users(context.Background()).Create(context.Background(), &User{
		ID: "u1", Username: "alice", Role: RoleYouth, PasswordHash: "$2a$hash", IsActive: true,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPGUserUpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`update users set role=$2, password_hash=$3, is_active=$4, updated_at=now() where id=$1`)).
		WithArgs("u9", "YOUTH", "$2a$hash", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users(context.Background()).Update(context.Background(), &User{
		ID: "u9", Role: RoleYouth, PasswordHash: "$2a$hash", IsActive: true,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRefreshTokenRotationTx(t *testing.T) {
	store, mock := newMockStore(t)
	expires := time.Now().Add(7 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`update refresh_tokens set revoked=true where token=$1`)).
		WithArgs("old-token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into refresh_tokens(token, user_id, expires_at, revoked) values($1,$2,$3,$4)`)).
		WithArgs("new-token", "u1", expires, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err := store.InTx(ctx, func(tx Store) error {
		if err := tx.RefreshTokens(ctx).MarkRevoked(ctx, "old-token"); err != nil {
			return err
		}
		return tx.RefreshTokens(ctx).Create(ctx, &RefreshToken{
			Token: "new-token", UserID: "u1", ExpiresAt: expires,
		})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func TestPGInTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`update refresh_tokens set revoked=true where token=$1`)).
		WithArgs("gone-token").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ctx := context.Background()
	err := store.InTx(ctx, func(tx Store) error {
		return tx.RefreshTokens(ctx).MarkRevoked(ctx, "gone-token")
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRefreshTokenFind(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`select token, user_id, expires_at, revoked, created_at from refresh_tokens where token=$1`)).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "expires_at", "revoked", "created_at"}).
			AddRow("tok-1", "u1", now.Add(time.Hour), false, now))

	tok, err := store.RefreshTokens(context.Background()).Find(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if tok.UserID != "u1" || tok.Revoked {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestPGMunicipalityFindByUsername(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`select id, username, name, department, password_hash, is_active, created_at, updated_at from municipalities where username=$1`)).
		WithArgs("muni").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "department", "password_hash", "is_active", "created_at", "updated_at"}).
			AddRow("m1", "muni", "Villa Nueva", "Guatemala", "$2a$hash", true, now, now))

	muni, err := store.Municipalities(context.Background()).FindByUsername(context.Background(), "muni")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if muni.Name != "Villa Nueva" || muni.Department != "Guatemala" {
		t.Fatalf("unexpected municipality: %+v", muni)
	}
}
