package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/metrics"
)

type RouterConfig struct {
	Env            string
	Production     bool
	AllowedOrigins []string
	UploadsDir     string
	RequestTimeout time.Duration
}

type Handlers struct {
	Admin        *AdminHandler
	Products     *ProductHandler
	Cart         *CartHandler
	Tokens       TokenVerifier
	LoginLimiter *LoginLimiter
}

func NewRouter(cfg RouterConfig, h Handlers, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "env": cfg.Env})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if cfg.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	r.Route("/admin", func(r chi.Router) {
		r.With(h.LoginLimiter.Handler).Post("/login", h.Admin.Login)
		r.Post("/logout", h.Admin.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(h.Tokens))
			r.Get("/me", h.Admin.Me)
			r.Put("/", h.Admin.UpdateCredentials)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{id}", h.Products.Get)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Delete("/session", h.Cart.ForgetSession)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{productId}", h.Cart.UpdateQuantity)
			r.Delete("/items/{productId}", h.Cart.RemoveItem)
			r.Put("/selected-size", h.Cart.SetSelectedSize)
		})
	})

	return otelhttp.NewHandler(r, "storefront-http")
}
