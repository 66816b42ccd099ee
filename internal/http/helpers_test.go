package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
)

type memoryAdmins struct {
	m      sync.Mutex
	admins map[int64]*domain.Admin
	nextID int64
}

func newMemoryAdmins() *memoryAdmins {
	return &memoryAdmins{admins: make(map[int64]*domain.Admin), nextID: 1}
}

func (s *memoryAdmins) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	s.m.Lock()
	defer s.m.Unlock()
	for _, a := range s.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrAdminNotFound
}

func (s *memoryAdmins) GetByID(_ context.Context, id int64) (*domain.Admin, error) {
	s.m.Lock()
	defer s.m.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, repository.ErrAdminNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryAdmins) Create(_ context.Context, email, hash string) (*domain.Admin, error) {
	s.m.Lock()
	defer s.m.Unlock()
	for _, a := range s.admins {
		if a.Email == email {
			return nil, repository.ErrEmailConflict
		}
	}
	a := &domain.Admin{ID: s.nextID, Email: email, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	s.admins[a.ID] = a
	s.nextID++
	cp := *a
	return &cp, nil
}

func (s *memoryAdmins) Update(_ context.Context, id int64, patch domain.AdminPatch) (*domain.Admin, error) {
	s.m.Lock()
	defer s.m.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, repository.ErrAdminNotFound
	}
	if patch.Email != nil {
		for _, other := range s.admins {
			if other.ID != id && other.Email == *patch.Email {
				return nil, repository.ErrEmailConflict
			}
		}
		a.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		a.PasswordHash = *patch.PasswordHash
	}
	cp := *a
	return &cp, nil
}

func (s *memoryAdmins) remove(id int64) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.admins, id)
}

func (s *memoryAdmins) snapshot(id int64) domain.Admin {
	s.m.Lock()
	defer s.m.Unlock()
	return *s.admins[id]
}

type catalogStub struct {
	products map[int64]*domain.Product
}

func newCatalogStub() *catalogStub {
	return &catalogStub{products: map[int64]*domain.Product{
		7: {ID: 7, Name: "Tee", Price: decimal.NewFromInt(50), Banner: "/uploads/tee.png", Sizes: []string{"M", "L"}},
		8: {ID: 8, Name: "Tote", Price: decimal.NewFromInt(20), Promotion: decimal.NewFromInt(25), Sizes: []string{}},
	}}
}

func (c *catalogStub) ListProducts(_ context.Context, _ string) ([]*domain.Product, error) {
	return []*domain.Product{c.products[7], c.products[8]}, nil
}

func (c *catalogStub) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

type testServer struct {
	handler http.Handler
	admins  *memoryAdmins
	auth    *service.AuthService
	carts   *service.CartService
	store   *cache.MemoryCache
}

type serverSettings struct {
	cfg        RouterConfig
	loginRate  float64
	loginBurst int
}

type serverOption func(*serverSettings)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	log := zap.NewNop()
	admins := newMemoryAdmins()
	auth, err := service.NewAuthService(admins, nil, log, service.AuthConfig{
		Secret:   []byte("http-test-secret"),
		TokenTTL: 2 * time.Hour,
		HashCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	store := cache.NewMemoryCache()
	carts := service.NewCartService(store, log, 0)
	t.Cleanup(func() {
		carts.Close()
		auth.Close()
	})

	settings := serverSettings{
		cfg: RouterConfig{
			Env:            "test",
			AllowedOrigins: []string{"http://localhost:3000", "https://shop.example"},
			RequestTimeout: 5 * time.Second,
		},
		loginRate:  100,
		loginBurst: 100,
	}
	for _, o := range opts {
		o(&settings)
	}
	cfg := settings.cfg
	limiter := NewLoginLimiter(settings.loginRate, settings.loginBurst, log)

	catalog := newCatalogStub()
	h := NewRouter(cfg, Handlers{
		Admin:        NewAdminHandler(auth, cfg.Production, log),
		Products:     NewProductHandler(catalog, time.Second, log),
		Cart:         NewCartHandler(carts, catalog, cfg.Production, time.Second, log),
		Tokens:       auth,
		LoginLimiter: limiter,
	}, log)

	return &testServer{handler: h, admins: admins, auth: auth, carts: carts, store: store}
}

func (s *testServer) seedAdmin(t *testing.T, email, password string) int64 {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := s.admins.Create(context.Background(), email, string(hash))
	require.NoError(t, err)
	return a.ID
}

func (s *testServer) do(method, path string, body interface{}, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, password string) *http.Cookie {
	rec := s.do(http.MethodPost, "/admin/login", LoginRequestDTO{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := findCookie(rec, tokenCookieName)
	require.NotNil(t, c)
	return c
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func withHeader(k, v string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}
