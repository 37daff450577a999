package auth

import (
	"context"
	"errors"
	"strings"

	"enlace.org/internal/ids"
)

// UpdateUserParams carries the mutable user fields. Nil means "leave as is".
type UpdateUserParams struct {
	Password *string
	Role     *Role
	IsActive *bool
}

// ListUsers returns all user accounts.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx).List(ctx)
}

// GetUser returns a single user account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.store.Users(ctx).Find(ctx, id)
}

// CreateUser provisions a user account without issuing tokens. Used by the
// admin surface; self-service signup goes through Register.
func (s *Service) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser applies partial updates. Deactivating an account or changing its
// role also revokes the account's refresh tokens; outstanding access tokens
// die on their next use via the Authenticate re-fetch.
func (s *Service) UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*User, error) {
	user, err := s.store.Users(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}

	revokeSessions := false
	if params.Password != nil {
		if *params.Password == "" {
			return nil, ErrInvalidInput
		}
		hash, err := HashPassword(*params.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if params.Role != nil && *params.Role != user.Role {
		if !params.Role.Valid() {
			return nil, ErrInvalidRole
		}
		user.Role = *params.Role
		revokeSessions = true
	}
	if params.IsActive != nil && *params.IsActive != user.IsActive {
		user.IsActive = *params.IsActive
		if !user.IsActive {
			revokeSessions = true
		}
	}

	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	if revokeSessions {
		if err := s.store.RefreshTokens(ctx).MarkRevokedByUser(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// DeleteUser removes a user account and revokes its refresh tokens.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.store.RefreshTokens(ctx).MarkRevokedByUser(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.store.Users(ctx).Delete(ctx, id)
}
