package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"enlace.org/internal/auth"
	"enlace.org/internal/content"
	"enlace.org/internal/ratelimit"
)

// fakeAuthStore is an in-memory auth.Store for handler tests.
type fakeAuthStore struct {
	mu        sync.Mutex
	users     map[string]*auth.User
	munis     map[string]*auth.Municipality
	companies map[string]*auth.Company
	tokens    map[string]*auth.RefreshToken
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		users:     make(map[string]*auth.User),
		munis:     make(map[string]*auth.Municipality),
		companies: make(map[string]*auth.Company),
		tokens:    make(map[string]*auth.RefreshToken),
	}
}

func (s *fakeAuthStore) Users(context.Context) auth.UserStore                  { return (*fakeUsers)(s) }
func (s *fakeAuthStore) Municipalities(context.Context) auth.MunicipalityStore { return (*fakeMunis)(s) }
func (s *fakeAuthStore) Companies(context.Context) auth.CompanyStore           { return (*fakeCompanies)(s) }
func (s *fakeAuthStore) RefreshTokens(context.Context) auth.RefreshTokenStore  { return (*fakeTokens)(s) }
func (s *fakeAuthStore) InTx(ctx context.Context, fn func(auth.Store) error) error {
	return fn(s)
}

type fakeUsers fakeAuthStore

func (s *fakeUsers) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return auth.ErrConflict
		}
	}
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *fakeUsers) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *fakeUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *fakeUsers) List(_ context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.User
	for _, u := range s.users {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (s *fakeUsers) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return auth.ErrNotFound
	}
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *fakeUsers) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

type fakeMunis fakeAuthStore

func (s *fakeMunis) Create(_ context.Context, m *auth.Municipality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *m
	s.munis[m.ID] = &clone
	return nil
}

func (s *fakeMunis) Find(_ context.Context, id string) (*auth.Municipality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.munis[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *fakeMunis) FindByUsername(_ context.Context, username string) (*auth.Municipality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.munis {
		if m.Username == username {
			clone := *m
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

type fakeCompanies fakeAuthStore

func (s *fakeCompanies) Create(_ context.Context, c *auth.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	s.companies[c.ID] = &clone
	return nil
}

func (s *fakeCompanies) Find(_ context.Context, id string) (*auth.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *fakeCompanies) FindByUsername(_ context.Context, username string) (*auth.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.Username == username {
			clone := *c
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

type fakeTokens fakeAuthStore

func (s *fakeTokens) Create(_ context.Context, tok *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tok.Token]; ok {
		return auth.ErrConflict
	}
	clone := *tok
	s.tokens[tok.Token] = &clone
	return nil
}

func (s *fakeTokens) Find(_ context.Context, token string) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *tok
	return &clone, nil
}

func (s *fakeTokens) MarkRevoked(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return auth.ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (s *fakeTokens) MarkRevokedByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

// fakeContentStore is an in-memory content.Store.
type fakeContentStore struct {
	mu           sync.Mutex
	articles     map[string]*content.Article
	offers       map[string]*content.JobOffer
	applications map[string]*content.Application
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		articles:     make(map[string]*content.Article),
		offers:       make(map[string]*content.JobOffer),
		applications: make(map[string]*content.Application),
	}
}

func (s *fakeContentStore) CreateArticle(_ context.Context, a *content.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *a
	s.articles[a.ID] = &clone
	return nil
}

func (s *fakeContentStore) FindArticle(_ context.Context, id string) (*content.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *fakeContentStore) ListArticles(_ context.Context) ([]*content.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*content.Article
	for _, a := range s.articles {
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

func (s *fakeContentStore) DeleteArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return content.ErrNotFound
	}
	delete(s.articles, id)
	return nil
}

func (s *fakeContentStore) CreateOffer(_ context.Context, o *content.JobOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *o
	s.offers[o.ID] = &clone
	return nil
}

func (s *fakeContentStore) FindOffer(_ context.Context, id string) (*content.JobOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (s *fakeContentStore) ListOffers(_ context.Context) ([]*content.JobOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*content.JobOffer
	for _, o := range s.offers {
		clone := *o
		out = append(out, &clone)
	}
	return out, nil
}

func (s *fakeContentStore) DeleteOffer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[id]; !ok {
		return content.ErrNotFound
	}
	delete(s.offers, id)
	return nil
}

func (s *fakeContentStore) CreateApplication(_ context.Context, a *content.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *a
	s.applications[a.ID] = &clone
	return nil
}

func (s *fakeContentStore) FindApplication(_ context.Context, id string) (*content.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applications[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *fakeContentStore) ListApplicationsByOffer(_ context.Context, offerID string) ([]*content.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*content.Application
	for _, a := range s.applications {
		if a.OfferID == offerID {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeContentStore) DeleteApplication(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[id]; !ok {
		return content.ErrNotFound
	}
	delete(s.applications, id)
	return nil
}

// test environment -----------------------------------------------------------

type testEnv struct {
	t         *testing.T
	handler   http.Handler
	auth      *auth.Service
	authStore *fakeAuthStore
	store     *fakeContentStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	authStore := newFakeAuthStore()
	svc, err := auth.NewService(authStore, "test-secret")
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	store := newFakeContentStore()
	api := New(svc, store, ratelimit.NewMemoryLimiter(), ReadyProbe{}, Options{
		Version:    "test",
		RateLimit:  10000,
		RateWindow: time.Minute,
	})
	return &testEnv{
		t:         t,
		handler:   api.Handler(),
		auth:      svc,
		authStore: authStore,
		store:     store,
	}
}

// do performs a request against the full handler chain.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

// registerUser creates a user over the API and returns its tokens.
func (e *testEnv) registerUser(username string, role auth.Role) (access, refresh string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/auth/register", "", map[string]any{
		"username": username,
		"password": "p@ss1234",
		"role":     string(role),
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	body := decodeBody(e.t, rec)
	access, _ = body["token"].(string)
	refresh, _ = body["refreshToken"].(string)
	if access == "" || refresh == "" {
		e.t.Fatalf("register %s: incomplete token pair in %v", username, body)
	}
	return access, refresh
}

// seedMunicipality provisions a municipality row and logs it in.
func (e *testEnv) seedMunicipality(id, username string) (token string) {
	e.t.Helper()
	hash, err := auth.HashPassword("muni-pass-123")
	if err != nil {
		e.t.Fatalf("HashPassword: %v", err)
	}
	e.authStore.munis[id] = &auth.Municipality{
		ID: id, Username: username, Name: "Villa Nueva", Department: "Guatemala",
		PasswordHash: hash, IsActive: true,
	}
	return e.login(username, "muni-pass-123")
}

// seedCompany provisions a company row and logs it in.
func (e *testEnv) seedCompany(id, username string) (token string) {
	e.t.Helper()
	hash, err := auth.HashPassword("acme-pass-123")
	if err != nil {
		e.t.Fatalf("HashPassword: %v", err)
	}
	e.authStore.companies[id] = &auth.Company{
		ID: id, Username: username, Name: "ACME", BusinessSector: "Logistics",
		PasswordHash: hash, IsActive: true,
	}
	return e.login(username, "acme-pass-123")
}

func (e *testEnv) login(username, password string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(e.t, rec)["token"].(string)
	if token == "" {
		e.t.Fatalf("login %s: no token in response", username)
	}
	return token
}
