package content

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Articles ------------------------------------------------------------------

func (s *PGStore) CreateArticle(ctx context.Context, a *Article) error {
	_, err := s.db.ExecContext(ctx,
		`insert into articles(id, title, body, author_id) values($1,$2,$3,$4)`,
		a.ID, a.Title, a.Body, a.AuthorID,
	)
	return err
}

func (s *PGStore) FindArticle(ctx context.Context, id string) (*Article, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, title, body, author_id, created_at, updated_at from articles where id=$1`, id)
	var a Article
	if err := row.Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, notFoundOr(err)
	}
	return &a, nil
}

func (s *PGStore) ListArticles(ctx context.Context) ([]*Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, title, body, author_id, created_at, updated_at from articles order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}

func (s *PGStore) DeleteArticle(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `delete from articles where id=$1`, id)
}

// Job offers ----------------------------------------------------------------

func (s *PGStore) CreateOffer(ctx context.Context, o *JobOffer) error {
	_, err := s.db.ExecContext(ctx,
		`insert into job_offers(id, company_id, title, description, location) values($1,$2,$3,$4,$5)`,
		o.ID, o.CompanyID, o.Title, o.Description, o.Location,
	)
	return err
}

func (s *PGStore) FindOffer(ctx context.Context, id string) (*JobOffer, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, company_id, title, description, location, created_at from job_offers where id=$1`, id)
	var o JobOffer
	if err := row.Scan(&o.ID, &o.CompanyID, &o.Title, &o.Description, &o.Location, &o.CreatedAt); err != nil {
		return nil, notFoundOr(err)
	}
	return &o, nil
}

func (s *PGStore) ListOffers(ctx context.Context) ([]*JobOffer, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, company_id, title, description, location, created_at from job_offers order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*JobOffer
	for rows.Next() {
		var o JobOffer
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.Title, &o.Description, &o.Location, &o.CreatedAt); err != nil {
			return nil, err
		}
		offers = append(offers, &o)
	}
	return offers, rows.Err()
}

func (s *PGStore) DeleteOffer(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `delete from job_offers where id=$1`, id)
}

// Applications ---------------------------------------------------------------

func (s *PGStore) CreateApplication(ctx context.Context, a *Application) error {
	_, err := s.db.ExecContext(ctx,
		`insert into applications(id, offer_id, user_id, student_id, message) values($1,$2,$3,$4,$5)`,
		a.ID, a.OfferID, a.UserID, nullable(a.StudentID), a.Message,
	)
	return err
}

func (s *PGStore) FindApplication(ctx context.Context, id string) (*Application, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, offer_id, user_id, student_id, message, created_at from applications where id=$1`, id)
	var a Application
	var studentID sql.NullString
	if err := row.Scan(&a.ID, &a.OfferID, &a.UserID, &studentID, &a.Message, &a.CreatedAt); err != nil {
		return nil, notFoundOr(err)
	}
	a.StudentID = studentID.String
	return &a, nil
}

func (s *PGStore) ListApplicationsByOffer(ctx context.Context, offerID string) ([]*Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, offer_id, user_id, student_id, message, created_at from applications where offer_id=$1 order by created_at asc`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		var a Application
		var studentID sql.NullString
		if err := rows.Scan(&a.ID, &a.OfferID, &a.UserID, &studentID, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.StudentID = studentID.String
		apps = append(apps, &a)
	}
	return apps, rows.Err()
}

func (s *PGStore) DeleteApplication(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `delete from applications where id=$1`, id)
}

// helpers -------------------------------------------------------------------

func (s *PGStore) deleteByID(ctx context.Context, query, id string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
