package auth

import (
	"context"
	"time"
)

// Kind discriminates the three authenticable principal kinds. It is carried
// verbatim in token claims and checked at every gate.
type Kind string

const (
	KindVolunteer   Kind = "volunteer"
	KindAssociation Kind = "association"
	KindAdmin       Kind = "admin"
)

// Valid reports whether k is one of the known principal kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVolunteer, KindAssociation, KindAdmin:
		return true
	}
	return false
}

// Account is a stored credential record: a volunteer or association row from
// the users table, or an admin row. PasswordHash is the PHC-encoded argon2id
// digest and never leaves this package.
type Account struct {
	ID           string
	Username     string
	Email        string
	Kind         Kind
	PasswordHash string
	CreatedAt    time.Time
}

// Principal is the resolved identity attached to authenticated requests.
// It carries no secret material.
type Principal struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Kind     Kind      `json:"user_type"`
	JoinedAt time.Time `json:"date_creation"`
}

func (a *Account) principal() Principal {
	return Principal{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Kind:     a.Kind,
		JoinedAt: a.CreatedAt,
	}
}

// Directory looks up credential records by username. Volunteers and
// associations live in the users table; admins are stored separately, so the
// requested kind selects the table. The zero Kind matches either user kind
// but never an admin.
type Directory interface {
	FindByUsername(ctx context.Context, username string, kind Kind) (*Account, error)
	FindByID(ctx context.Context, id string, kind Kind) (*Account, error)
}

// TokenPair is the credential set returned from login and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
