package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
	q  querier
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, q: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &userStore{q: s.q} }
func (s *PGStore) Municipalities(context.Context) MunicipalityStore {
	return &municipalityStore{q: s.q}
}
func (s *PGStore) Companies(context.Context) CompanyStore { return &companyStore{q: s.q} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{q: s.q}
}

func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(&PGStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// translateErr maps low-level database errors onto package sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

// User store ---------------------------------------------------------------

type userStore struct{ q querier }

const userColumns = `id, username, role, password_hash, is_active, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	_, err := s.q.ExecContext(ctx,
		`insert into users(id, username, role, password_hash, is_active) values($1,$2,$3,$4,$5)`,
		u.ID, u.Username, string(u.Role), u.PasswordHash, u.IsActive,
	)
	return translateErr(err)
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username)
	return scanUser(row)
}

func (s *userStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.q.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &role, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = Role(role)
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *userStore) Update(ctx context.Context, u *User) error {
	res, err := s.q.ExecContext(ctx,
		`update users set role=$2, password_hash=$3, is_active=$4, updated_at=now() where id=$1`,
		u.ID, string(u.Role), u.PasswordHash, u.IsActive,
	)
	if err != nil {
		return translateErr(err)
	}
	return requireRowAffected(res)
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &role, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}
	u.Role = Role(role)
	return &u, nil
}

// Municipality store -------------------------------------------------------

type municipalityStore struct{ q querier }

const municipalityColumns = `id, username, name, department, password_hash, is_active, created_at, updated_at`

func (s *municipalityStore) Create(ctx context.Context, m *Municipality) error {
	_, err := s.q.ExecContext(ctx,
		`insert into municipalities(id, username, name, department, password_hash, is_active) values($1,$2,$3,$4,$5,$6)`,
		m.ID, m.Username, m.Name, m.Department, m.PasswordHash, m.IsActive,
	)
	return translateErr(err)
}

func (s *municipalityStore) Find(ctx context.Context, id string) (*Municipality, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+municipalityColumns+` from municipalities where id=$1`, id)
	return scanMunicipality(row)
}

func (s *municipalityStore) FindByUsername(ctx context.Context, username string) (*Municipality, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+municipalityColumns+` from municipalities where username=$1`, username)
	return scanMunicipality(row)
}

func scanMunicipality(row *sql.Row) (*Municipality, error) {
	var m Municipality
	if err := row.Scan(&m.ID, &m.Username, &m.Name, &m.Department, &m.PasswordHash, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

// Company store ------------------------------------------------------------

type companyStore struct{ q querier }

const companyColumns = `id, username, name, business_sector, password_hash, is_active, created_at, updated_at`

func (s *companyStore) Create(ctx context.Context, c *Company) error {
	_, err := s.q.ExecContext(ctx,
		`insert into companies(id, username, name, business_sector, password_hash, is_active) values($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Username, c.Name, c.BusinessSector, c.PasswordHash, c.IsActive,
	)
	return translateErr(err)
}

func (s *companyStore) Find(ctx context.Context, id string) (*Company, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+companyColumns+` from companies where id=$1`, id)
	return scanCompany(row)
}

func (s *companyStore) FindByUsername(ctx context.Context, username string) (*Company, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+companyColumns+` from companies where username=$1`, username)
	return scanCompany(row)
}

func scanCompany(row *sql.Row) (*Company, error) {
	var c Company
	if err := row.Scan(&c.ID, &c.Username, &c.Name, &c.BusinessSector, &c.PasswordHash, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

// Refresh token store ------------------------------------------------------

type refreshTokenStore struct{ q querier }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	_, err := s.q.ExecContext(ctx,
		`insert into refresh_tokens(token, user_id, expires_at, revoked) values($1,$2,$3,$4)`,
		tok.Token, tok.UserID, tok.ExpiresAt, tok.Revoked,
	)
	return translateErr(err)
}

func (s *refreshTokenStore) Find(ctx context.Context, token string) (*RefreshToken, error) {
	row := s.q.QueryRowContext(ctx,
		`select token, user_id, expires_at, revoked, created_at from refresh_tokens where token=$1`, token)
	var tok RefreshToken
	if err := row.Scan(&tok.Token, &tok.UserID, &tok.ExpiresAt, &tok.Revoked, &tok.CreatedAt); err != nil {
		return nil, translateErr(err)
	}
	return &tok, nil
}

func (s *refreshTokenStore) MarkRevoked(ctx context.Context, token string) error {
	res, err := s.q.ExecContext(ctx,
		`update refresh_tokens set revoked=true where token=$1`, token)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *refreshTokenStore) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := s.q.ExecContext(ctx,
		`update refresh_tokens set revoked=true where user_id=$1 and revoked=false`, userID)
	return err
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
