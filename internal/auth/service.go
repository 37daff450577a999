package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"enlace.org/internal/ids"
)

const (
	defaultUserTokenTTL   = 15 * time.Minute
	defaultEntityTokenTTL = 24 * time.Hour
	defaultRefreshTTL     = 7 * 24 * time.Hour
)

// ErrUserInactive is returned by Refresh when the owning user has been
// deactivated or removed since the refresh token was issued.
var ErrUserInactive = errors.New("auth: user inactive or missing")

// Service verifies credentials, issues tokens and authenticates requests for
// the three principal tables.
type Service struct {
	store  Store
	now    func() time.Time
	secret []byte
	issuer string

	userTTL    time.Duration
	entityTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) { s.issuer = strings.TrimSpace(issuer) }
}

// WithUserTokenTTL configures the access-token lifetime for user principals.
func WithUserTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.userTTL = ttl
		}
	}
}

// WithEntityTokenTTL configures the access-token lifetime for municipality and
// company principals.
func WithEntityTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.entityTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh-token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service. The signing secret is mandatory.
func NewService(store Store, secret string, opts ...ServiceOption) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		secret:     []byte(secret),
		issuer:     "enlace",
		userTTL:    defaultUserTokenTTL,
		entityTTL:  defaultEntityTokenTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TokenPair bundles an access token with its refresh credential.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult reports which table matched and carries the issued tokens.
// Exactly one of User, Municipality, Company is set, matching Kind.
// RefreshToken is only present for user logins.
type LoginResult struct {
	Kind             Kind
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *User
	Municipality     *Municipality
	Company          *Company
}

// Login verifies credentials in fixed precedence order: User, then
// Municipality, then Company. The first table that has a row for the username
// decides the outcome. An existing but inactive user, or a password mismatch
// against an existing user row, fails immediately; it does not fall through to
// the other tables. The same username may exist in more than one table (there
// is no cross-table uniqueness constraint); this precedence order is kept for
// compatibility with existing data.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrInvalidInput
	}

	user, err := s.store.Users(ctx).FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !user.IsActive || VerifyPassword(user.PasswordHash, password) != nil {
			return LoginResult{}, ErrInvalidCredentials
		}
		pair, err := s.issueUserPair(ctx, user)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{
			Kind:             KindUser,
			AccessToken:      pair.AccessToken,
			AccessExpiresAt:  pair.AccessExpiresAt,
			RefreshToken:     pair.RefreshToken,
			RefreshExpiresAt: pair.RefreshExpiresAt,
			User:             user,
		}, nil
	case !errors.Is(err, ErrNotFound):
		return LoginResult{}, err
	}

	muni, err := s.store.Municipalities(ctx).FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !muni.IsActive || VerifyPassword(muni.PasswordHash, password) != nil {
			return LoginResult{}, ErrInvalidCredentials
		}
		token, exp, err := s.signMunicipalityToken(muni)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{
			Kind:            KindMunicipality,
			AccessToken:     token,
			AccessExpiresAt: exp,
			Municipality:    muni,
		}, nil
	case !errors.Is(err, ErrNotFound):
		return LoginResult{}, err
	}

	company, err := s.store.Companies(ctx).FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !company.IsActive || VerifyPassword(company.PasswordHash, password) != nil {
			return LoginResult{}, ErrInvalidCredentials
		}
		token, exp, err := s.signCompanyToken(company)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{
			Kind:            KindCompany,
			AccessToken:     token,
			AccessExpiresAt: exp,
			Company:         company,
		}, nil
	case !errors.Is(err, ErrNotFound):
		return LoginResult{}, err
	}

	return LoginResult{}, ErrInvalidCredentials
}

// Register creates a user account and issues the same token pair a login
// would. Only user principals self-register; municipalities and companies are
// provisioned by administrators.
func (s *Service) Register(ctx context.Context, username, password string, role Role) (*User, TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, TokenPair{}, ErrInvalidInput
	}
	if !role.Valid() {
		return nil, TokenPair{}, ErrInvalidRole
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user := &User{
		ID:           ids.New(),
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issueUserPair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh redeems a refresh token. Tokens are single-use: the old token is
// revoked and a new one created in the same transaction, so a redeemed token
// can never be replayed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, nil, ErrInvalidToken
	}
	record, err := s.store.RefreshTokens(ctx).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidToken
		}
		return TokenPair{}, nil, err
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, nil, ErrInvalidToken
	}

	user, err := s.store.Users(ctx).Find(ctx, record.UserID)
	if err != nil || !user.IsActive {
		// The spent token stays revoked even though no new pair is issued.
		_ = s.store.RefreshTokens(ctx).MarkRevoked(ctx, record.Token)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, err
		}
		return TokenPair{}, nil, ErrUserInactive
	}

	next := &RefreshToken{UserID: user.ID, ExpiresAt: s.now().Add(s.refreshTTL)}
	if next.Token, err = newOpaqueToken(); err != nil {
		return TokenPair{}, nil, err
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.RefreshTokens(ctx).MarkRevoked(ctx, record.Token); err != nil {
			return err
		}
		return tx.RefreshTokens(ctx).Create(ctx, next)
	})
	if err != nil {
		return TokenPair{}, nil, err
	}

	access, exp, err := s.signUserToken(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RefreshToken:     next.Token,
		RefreshExpiresAt: next.ExpiresAt,
	}, user, nil
}

// Logout revokes the refresh token if it exists and is still live. It is
// idempotent: an unknown, already-revoked or absent token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	record, err := s.store.RefreshTokens(ctx).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if record.Revoked {
		return nil
	}
	return s.store.RefreshTokens(ctx).MarkRevoked(ctx, record.Token)
}

// Authenticate verifies an access token and re-fetches the principal row so
// deactivation and role changes take effect on the very next request. This
// costs one read per request and must stay that way: caching principal state
// here would break immediate revocation.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	switch claims.Kind {
	case KindUser:
		user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Principal{}, ErrInvalidToken
			}
			return Principal{}, err
		}
		// A role change after issuance invalidates the token instead of
		// silently honoring the stale embedded role.
		if !user.IsActive || user.Role != claims.Role {
			return Principal{}, ErrInvalidToken
		}
		return Principal{Kind: KindUser, ID: user.ID, Username: user.Username, Role: user.Role}, nil

	case KindMunicipality:
		muni, err := s.store.Municipalities(ctx).Find(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Principal{}, ErrInvalidToken
			}
			return Principal{}, err
		}
		if !muni.IsActive {
			return Principal{}, ErrInvalidToken
		}
		return Principal{Kind: KindMunicipality, ID: muni.ID, Username: muni.Username}, nil

	case KindCompany:
		company, err := s.store.Companies(ctx).Find(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Principal{}, ErrInvalidToken
			}
			return Principal{}, err
		}
		if !company.IsActive {
			return Principal{}, ErrInvalidToken
		}
		return Principal{Kind: KindCompany, ID: company.ID, Username: company.Username}, nil

	default:
		return Principal{}, ErrInvalidToken
	}
}

func (s *Service) issueUserPair(ctx context.Context, user *User) (TokenPair, error) {
	access, exp, err := s.signUserToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh := &RefreshToken{UserID: user.ID, ExpiresAt: s.now().Add(s.refreshTTL)}
	if refresh.Token, err = newOpaqueToken(); err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
