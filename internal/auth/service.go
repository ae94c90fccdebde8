package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lyric-s/together-app-backend/internal/audit"
	"github.com/lyric-s/together-app-backend/internal/obs"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
)

// Service orchestrates the hasher, the token codec and the refresh store to
// answer login, refresh and identify for incoming requests.
type Service struct {
	directory Directory
	tokens    RefreshTokenStore
	codec     *Codec

	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the authenticator. All three collaborators are
// required.
func NewService(directory Directory, tokens RefreshTokenStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if directory == nil || tokens == nil || codec == nil {
		return nil, errors.New("auth: directory, token store and codec are required")
	}
	svc := &Service{
		directory:  directory,
		tokens:     tokens,
		codec:      codec,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Login verifies credentials and issues a fresh token pair. The zero Kind
// accepts either user kind (the public login form carries no kind); admins
// authenticate with an explicit KindAdmin from their own route. Unknown
// username and wrong password fail identically: the unknown-user branch
// still runs a full argon2 verification against a decoy digest, so neither
// the error nor the response time reveals whether the account exists.
func (s *Service) Login(ctx context.Context, username, password string, kind Kind) (TokenPair, Principal, error) {
	label := string(kind)
	if label == "" {
		label = "user"
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" || (kind != "" && !kind.Valid()) {
		obs.ObserveLogin(label, "denied")
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	account, err := s.directory.FindByUsername(ctx, username, kind)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			VerifyPassword(password, DecoyDigest())
			obs.ObserveLogin(label, "denied")
			return TokenPair{}, Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, Principal{}, fmt.Errorf("lookup account: %w", err)
	}
	if !VerifyPassword(password, account.PasswordHash) {
		obs.ObserveLogin(label, "denied")
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	principal := account.principal()
	pair, err := s.mint(ctx, principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	obs.ObserveLogin(string(principal.Kind), "ok")
	return pair, principal, nil
}

// Refresh rotates a refresh token: the presented token is consumed (single
// use) and a brand-new access+refresh pair is minted and stored. Any failure
// surfaces as ErrRefreshFailed; the true cause goes to logs and metrics only.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	claims, err := s.codec.Decode(refreshToken, TokenTypeRefresh)
	if err != nil {
		obs.ObserveRefresh("denied")
		return TokenPair{}, Principal{}, ErrRefreshFailed
	}

	if err := s.tokens.Consume(ctx, claims.Kind, claims.Subject, HashJTI(claims.ID)); err != nil {
		obs.ObserveRefresh("denied")
		if errors.Is(err, ErrTokenReuseOrUnknown) {
			// Reuse of a rotated token is the canonical theft signal.
			obs.ObserveRefreshReuse()
			_ = audit.LogEvent(ctx, "auth.refresh.reuse_detected", map[string]any{
				"principal_id":   claims.Subject,
				"principal_kind": string(claims.Kind),
			})
			return TokenPair{}, Principal{}, ErrRefreshFailed
		}
		return TokenPair{}, Principal{}, fmt.Errorf("consume refresh token: %w", err)
	}

	account, err := s.directory.FindByID(ctx, claims.Subject, claims.Kind)
	if err != nil {
		obs.ObserveRefresh("denied")
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrRefreshFailed
		}
		return TokenPair{}, Principal{}, fmt.Errorf("lookup account: %w", err)
	}

	principal := account.principal()
	pair, err := s.mint(ctx, principal)
	if err != nil {
		obs.ObserveRefresh("denied")
		return TokenPair{}, Principal{}, err
	}
	obs.ObserveRefresh("ok")
	return pair, principal, nil
}

// Identify validates an access token and resolves its principal. required
// narrows the gate to a single kind; the zero Kind accepts any authenticated
// principal. Admin gates additionally demand the admin mode claim.
func (s *Service) Identify(ctx context.Context, accessToken string, required Kind) (Principal, error) {
	claims, err := s.codec.Decode(accessToken, TokenTypeAccess)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	if required != "" {
		if claims.Kind != required {
			return Principal{}, ErrForbidden
		}
		if required == KindAdmin && !claims.AdminMode() {
			return Principal{}, ErrForbidden
		}
	}

	account, err := s.directory.FindByID(ctx, claims.Subject, claims.Kind)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, fmt.Errorf("lookup account: %w", err)
	}
	return account.principal(), nil
}

// Logout revokes the principal's refresh token. Access tokens stay valid
// until expiry; the short TTL bounds the exposure.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	return s.tokens.Revoke(ctx, p.Kind, p.ID)
}

func (s *Service) mint(ctx context.Context, principal Principal) (TokenPair, error) {
	access, accessClaims, err := s.codec.Issue(principal, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshClaims, err := s.codec.Issue(principal, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	rec := &RefreshRecord{
		Kind:      principal.Kind,
		Principal: principal.ID,
		JTIHash:   HashJTI(refreshClaims.ID),
		IssuedAt:  refreshClaims.IssuedAt.Time,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
	}
	if err := s.tokens.Save(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}
