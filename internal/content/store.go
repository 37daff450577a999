package content

import "context"

// Store describes persistence for platform content.
type Store interface {
	CreateArticle(ctx context.Context, a *Article) error
	FindArticle(ctx context.Context, id string) (*Article, error)
	ListArticles(ctx context.Context) ([]*Article, error)
	DeleteArticle(ctx context.Context, id string) error

	CreateOffer(ctx context.Context, o *JobOffer) error
	FindOffer(ctx context.Context, id string) (*JobOffer, error)
	ListOffers(ctx context.Context) ([]*JobOffer, error)
	DeleteOffer(ctx context.Context, id string) error

	CreateApplication(ctx context.Context, a *Application) error
	FindApplication(ctx context.Context, id string) (*Application, error)
	ListApplicationsByOffer(ctx context.Context, offerID string) ([]*Application, error)
	DeleteApplication(ctx context.Context, id string) error
}
