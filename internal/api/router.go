package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/podari/internal/donation"
	"github.com/erazemk/podari/internal/model"
	"github.com/erazemk/podari/internal/uploads"
)

// Config holds the dependencies of the HTTP API.
type Config struct {
	DB        *sql.DB
	JWTSecret string
	Products  *donation.Service
	Uploads   *uploads.Store

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: cfg.DB, JWTSecret: cfg.JWTSecret}
	usersHandler := &UsersHandler{DB: cfg.DB}
	productsHandler := &ProductsHandler{Products: cfg.Products, Uploads: cfg.Uploads}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: account creation and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Own account.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /api/users/me", authMW(http.HandlerFunc(authHandler.Me)))

	// User management: admin only.
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Products: browsing is public, everything else needs a user.
	mux.HandleFunc("GET /api/products", productsHandler.List)
	mux.HandleFunc("GET /api/products/{id}", productsHandler.Get)
	mux.Handle("POST /api/products", authMW(http.HandlerFunc(productsHandler.Create)))
	mux.Handle("GET /api/products/mine", authMW(http.HandlerFunc(productsHandler.Mine)))
	mux.Handle("GET /api/products/received", authMW(http.HandlerFunc(productsHandler.Received)))
	mux.Handle("PUT /api/products/{id}", authMW(http.HandlerFunc(productsHandler.Update)))
	mux.Handle("DELETE /api/products/{id}", authMW(requireAdmin(http.HandlerFunc(productsHandler.Delete))))
	mux.Handle("PATCH /api/products/{id}/schedule", authMW(http.HandlerFunc(productsHandler.Schedule)))
	mux.Handle("PATCH /api/products/{id}/conclude", authMW(http.HandlerFunc(productsHandler.Conclude)))

	mux.Handle("GET /uploads/{name}", cfg.Uploads)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.DB.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return mux
}
