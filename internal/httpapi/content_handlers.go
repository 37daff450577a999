package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"enlace.org/internal/audit"
	"enlace.org/internal/auth"
	"enlace.org/internal/content"
	"enlace.org/internal/ids"
)

// Owner lookups feed the ownership gate.

func (a *API) articleOwner(ctx context.Context, id string) (content.Owner, error) {
	article, err := a.content.FindArticle(ctx, id)
	if err != nil {
		return content.Owner{}, err
	}
	return content.Owner{AuthorID: article.AuthorID}, nil
}

func (a *API) applicationOwner(ctx context.Context, id string) (content.Owner, error) {
	app, err := a.content.FindApplication(ctx, id)
	if err != nil {
		return content.Owner{}, err
	}
	return content.Owner{UserID: app.UserID, StudentID: app.StudentID}, nil
}

// articles -------------------------------------------------------------------

type articleRequest struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

type articleView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	Mine      bool      `json:"mine,omitempty"`
}

func viewArticle(a *content.Article) articleView {
	return articleView{
		ID:        a.ID,
		Title:     a.Title,
		Body:      a.Body,
		AuthorID:  a.AuthorID,
		CreatedAt: a.CreatedAt,
	}
}

func (a *API) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := a.content.ListArticles(r.Context())
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	principal, authed := auth.PrincipalFromContext(r.Context())
	views := make([]articleView, 0, len(articles))
	for _, article := range articles {
		view := viewArticle(article)
		if authed && article.AuthorID == principal.ID {
			view.Mine = true
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": views})
}

func (a *API) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	article, err := a.content.FindArticle(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": viewArticle(article)})
}

func (a *API) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req articleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	article := &content.Article{
		ID:       ids.New(),
		Title:    req.Title,
		Body:     req.Body,
		AuthorID: principal.ID,
	}
	if err := a.content.CreateArticle(r.Context(), article); err != nil {
		a.writeContentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "content.article.created", map[string]any{"article_id": article.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"article": viewArticle(article)})
}

func (a *API) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.content.DeleteArticle(r.Context(), id); err != nil {
		a.writeContentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "content.article.deleted", map[string]any{"article_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "article deleted"})
}

// job offers -----------------------------------------------------------------

type offerRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Location    string `json:"location"`
}

type offerView struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"companyId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func viewOffer(o *content.JobOffer) offerView {
	return offerView{
		ID:          o.ID,
		CompanyID:   o.CompanyID,
		Title:       o.Title,
		Description: o.Description,
		Location:    o.Location,
		CreatedAt:   o.CreatedAt,
	}
}

func (a *API) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := a.content.ListOffers(r.Context())
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		views = append(views, viewOffer(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": views})
}

func (a *API) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := a.content.FindOffer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offer": viewOffer(offer)})
}

func (a *API) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req offerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offer := &content.JobOffer{
		ID:          ids.New(),
		CompanyID:   principal.ID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	}
	if err := a.content.CreateOffer(r.Context(), offer); err != nil {
		a.writeContentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "content.offer.created", map[string]any{"offer_id": offer.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"offer": viewOffer(offer)})
}

// handleDeleteOffer: offers belong to the publishing company. A SUPERADMIN
// user may also remove them; other principals get a 403.
func (a *API) handleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	offer, err := a.content.FindOffer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	allowed := principal.IsSuperadmin() ||
		(principal.Kind == auth.KindCompany && offer.CompanyID == principal.ID)
	if !allowed {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return
	}
	if err := a.content.DeleteOffer(r.Context(), offer.ID); err != nil {
		a.writeContentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "content.offer.deleted", map[string]any{"offer_id": offer.ID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "offer deleted"})
}

// applications ---------------------------------------------------------------

type applicationRequest struct {
	Message string `json:"message"`
}

type applicationView struct {
	ID        string    `json:"id"`
	OfferID   string    `json:"offerId"`
	UserID    string    `json:"userId"`
	StudentID string    `json:"studentId,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewApplication(app *content.Application) applicationView {
	return applicationView{
		ID:        app.ID,
		OfferID:   app.OfferID,
		UserID:    app.UserID,
		StudentID: app.StudentID,
		Message:   app.Message,
		CreatedAt: app.CreatedAt,
	}
}

func (a *API) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	offer, err := a.content.FindOffer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	var req applicationRequest
	_ = decodeJSON(r, &req)
	app := &content.Application{
		ID:      ids.New(),
		OfferID: offer.ID,
		UserID:  principal.ID,
		Message: req.Message,
	}
	if err := a.content.CreateApplication(r.Context(), app); err != nil {
		a.writeContentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "content.application.created", map[string]any{
		"application_id": app.ID,
		"offer_id":       offer.ID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"application": viewApplication(app)})
}

// handleListApplications: the publishing company reviews applicants.
func (a *API) handleListApplications(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	offer, err := a.content.FindOffer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	allowed := principal.IsSuperadmin() ||
		(principal.Kind == auth.KindCompany && offer.CompanyID == principal.ID)
	if !allowed {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return
	}
	apps, err := a.content.ListApplicationsByOffer(r.Context(), offer.ID)
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	views := make([]applicationView, 0, len(apps))
	for _, app := range apps {
		views = append(views, viewApplication(app))
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": views})
}

func (a *API) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := a.content.FindApplication(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeContentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application": viewApplication(app)})
}

func (a *API) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.content.DeleteApplication(r.Context(), id); err != nil {
		a.writeContentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "content.application.deleted", map[string]any{"application_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "application withdrawn"})
}

func (a *API) writeContentError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}
