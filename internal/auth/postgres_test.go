package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRefreshTokenStoreSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rec := &RefreshRecord{
		Kind:      KindVolunteer,
		Principal: "user-1",
		JTIHash:   HashJTI("jti-1"),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec("insert into refresh_tokens").
		WithArgs(sqlmock.AnyArg(), "volunteer", "user-1", rec.JTIHash, rec.IssuedAt, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGRefreshTokenStore(db)
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Save must assign a record id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRefreshTokenStoreConsume(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGRefreshTokenStore(db)
	hash := HashJTI("jti-1")

	// Matching row: the conditional delete removes it and consume succeeds.
	mock.ExpectExec("delete from refresh_tokens").
		WithArgs("volunteer", "user-1", hash).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.Consume(context.Background(), KindVolunteer, "user-1", hash); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	// No row affected: unknown, already used and expired all look the same.
	mock.ExpectExec("delete from refresh_tokens").
		WithArgs("volunteer", "user-1", hash).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.Consume(context.Background(), KindVolunteer, "user-1", hash); !errors.Is(err, ErrTokenReuseOrUnknown) {
		t.Fatalf("expected ErrTokenReuseOrUnknown, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRefreshTokenStoreRevoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// Revoke succeeds whether or not a record existed.
	mock.ExpectExec("delete from refresh_tokens").
		WithArgs("admin", "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGRefreshTokenStore(db)
	if err := store.Revoke(context.Background(), KindAdmin, "admin-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDirectoryFindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	directory := NewPGDirectory(db)

	mock.ExpectQuery("select id, username, email, user_type, password_hash, created_at").
		WithArgs("alice", "volunteer").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "username", "email", "user_type", "password_hash", "created_at"}).
			AddRow("user-1", "alice", "alice@example.org", "volunteer", "$argon2id$...", now))

	acc, err := directory.FindByUsername(context.Background(), "alice", KindVolunteer)
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if acc.ID != "user-1" || acc.Kind != KindVolunteer {
		t.Fatalf("unexpected account: %+v", acc)
	}

	mock.ExpectQuery("select id, username, email, password_hash, created_at from admins").
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "username", "email", "password_hash", "created_at"}).
			AddRow("admin-1", "root", "admin@example.org", "$argon2id$...", now))

	admin, err := directory.FindByUsername(context.Background(), "root", KindAdmin)
	if err != nil {
		t.Fatalf("FindByUsername admin: %v", err)
	}
	if admin.Kind != KindAdmin {
		t.Fatalf("unexpected kind %q", admin.Kind)
	}

	mock.ExpectQuery("select id, username, email, user_type, password_hash, created_at").
		WithArgs("ghost", "volunteer").
		WillReturnError(sql.ErrNoRows)

	if _, err := directory.FindByUsername(context.Background(), "ghost", KindVolunteer); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
