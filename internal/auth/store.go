package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Municipalities(ctx context.Context) MunicipalityStore
	Companies(ctx context.Context) CompanyStore
	RefreshTokens(ctx context.Context) RefreshTokenStore

	// InTx runs fn against a transactional view of the store. Used for
	// refresh-token rotation so revoke-old and create-new commit together.
	InTx(ctx context.Context, fn func(Store) error) error
}

// UserStore manages role-based user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

// MunicipalityStore manages municipality accounts.
type MunicipalityStore interface {
	Create(ctx context.Context, m *Municipality) error
	Find(ctx context.Context, id string) (*Municipality, error)
	FindByUsername(ctx context.Context, username string) (*Municipality, error)
}

// CompanyStore manages company accounts.
type CompanyStore interface {
	Create(ctx context.Context, c *Company) error
	Find(ctx context.Context, id string) (*Company, error)
	FindByUsername(ctx context.Context, username string) (*Company, error)
}

// RefreshTokenStore manages the refresh-token lifecycle. Tokens transition to
// revoked and stay on record; nothing is deleted.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, token string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, token string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}
