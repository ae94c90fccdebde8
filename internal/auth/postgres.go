package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lyric-s/together-app-backend/internal/ids"
)

var (
	_ Directory         = (*PGDirectory)(nil)
	_ RefreshTokenStore = (*PGRefreshTokenStore)(nil)
)

// PGDirectory resolves accounts from the users and admins tables.
type PGDirectory struct {
	db *sql.DB
}

func NewPGDirectory(db *sql.DB) *PGDirectory {
	return &PGDirectory{db: db}
}

func (d *PGDirectory) FindByUsername(ctx context.Context, username string, kind Kind) (*Account, error) {
	if kind == KindAdmin {
		return d.scanAdmin(d.db.QueryRowContext(ctx,
			`select id, username, email, password_hash, created_at from admins where username = $1`,
			username))
	}
	if kind == "" {
		return d.scanUser(d.db.QueryRowContext(ctx,
			`select id, username, email, user_type, password_hash, created_at
			 from users where username = $1`, username))
	}
	return d.scanUser(d.db.QueryRowContext(ctx,
		`select id, username, email, user_type, password_hash, created_at
		 from users where username = $1 and user_type = $2`,
		username, string(kind)))
}

func (d *PGDirectory) FindByID(ctx context.Context, id string, kind Kind) (*Account, error) {
	if kind == KindAdmin {
		return d.scanAdmin(d.db.QueryRowContext(ctx,
			`select id, username, email, password_hash, created_at from admins where id = $1`, id))
	}
	if kind == "" {
		return d.scanUser(d.db.QueryRowContext(ctx,
			`select id, username, email, user_type, password_hash, created_at
			 from users where id = $1`, id))
	}
	return d.scanUser(d.db.QueryRowContext(ctx,
		`select id, username, email, user_type, password_hash, created_at
		 from users where id = $1 and user_type = $2`,
		id, string(kind)))
}

func (d *PGDirectory) scanUser(row *sql.Row) (*Account, error) {
	var (
		acc  Account
		kind string
	)
	if err := row.Scan(&acc.ID, &acc.Username, &acc.Email, &kind, &acc.PasswordHash, &acc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	acc.Kind = Kind(kind)
	return &acc, nil
}

func (d *PGDirectory) scanAdmin(row *sql.Row) (*Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query admin: %w", err)
	}
	acc.Kind = KindAdmin
	return &acc, nil
}

// PGRefreshTokenStore keeps at most one refresh-token hash per principal in
// the refresh_tokens table. Both mutations are single statements, so the
// at-most-one-valid invariant holds under concurrent refresh attempts
// without explicit locking.
type PGRefreshTokenStore struct {
	db *sql.DB
}

func NewPGRefreshTokenStore(db *sql.DB) *PGRefreshTokenStore {
	return &PGRefreshTokenStore{db: db}
}

func (s *PGRefreshTokenStore) Save(ctx context.Context, rec *RefreshRecord) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, principal_kind, principal_id, jti_hash, issued_at, expires_at)
		 values($1,$2,$3,$4,$5,$6)
		 on conflict (principal_kind, principal_id)
		 do update set id = excluded.id, jti_hash = excluded.jti_hash,
		               issued_at = excluded.issued_at, expires_at = excluded.expires_at`,
		rec.ID, string(rec.Kind), rec.Principal, rec.JTIHash, rec.IssuedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Consume is a conditional delete; the affected-row count is the only signal
// of success, so two racing calls for the same token cannot both win.
func (s *PGRefreshTokenStore) Consume(ctx context.Context, kind Kind, principalID, jtiHash string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens
		 where principal_kind = $1 and principal_id = $2 and jti_hash = $3 and expires_at > now()`,
		string(kind), principalID, jtiHash,
	)
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	if n == 0 {
		return ErrTokenReuseOrUnknown
	}
	return nil
}

func (s *PGRefreshTokenStore) Revoke(ctx context.Context, kind Kind, principalID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where principal_kind = $1 and principal_id = $2`,
		string(kind), principalID,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
