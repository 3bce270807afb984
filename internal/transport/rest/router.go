package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/expense-claims/internal/auth"
	"github.com/frahmantamala/expense-claims/internal/claim"
	"github.com/frahmantamala/expense-claims/internal/transport/middleware"
	"github.com/frahmantamala/expense-claims/internal/transport/swagger"
	"github.com/frahmantamala/expense-claims/internal/user"
)

// Routes bundles everything RegisterAllRoutes mounts. Nil handlers are skipped.
type Routes struct {
	DB             *sqlx.DB
	AuthHandler    *auth.Handler
	RBAC           *auth.RBACAuthorization
	UserHandler    *user.Handler
	ClaimHandler   *claim.Handler
	AllowedOrigins []string
	OpenAPIPath    string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, rt Routes) {
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router.Use(middleware.CORS(rt.AllowedOrigins))
	router.Use(middleware.TraceID)
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))

	if rt.OpenAPIPath != "" {
		router.Get(swagger.SpecURL, func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, rt.OpenAPIPath)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	if rt.DB != nil {
		health := NewHealthHandler(rt.DB)
		router.Get("/health", health.Health)
		router.Get("/ping", health.Ping)
	}

	if rt.AuthHandler == nil {
		return
	}

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", rt.AuthHandler.Register)
		r.Post("/login", rt.AuthHandler.Login)
	})

	rbac := rt.RBAC
	if rbac == nil {
		rbac = auth.NewRBACAuthorization(logger)
	}

	router.Group(func(pr chi.Router) {
		pr.Use(rt.AuthHandler.AuthMiddleware)

		if rt.UserHandler != nil {
			pr.Get("/users/me", rt.UserHandler.GetCurrentUser)
		}

		if rt.ClaimHandler == nil {
			return
		}
		h := rt.ClaimHandler
		pr.Route("/expenses", func(er chi.Router) {
			er.Get("/", h.ListClaims)
			er.Get("/{id}", h.GetClaim)

			er.Group(func(sr chi.Router) {
				sr.Use(rbac.RequireSubmitter())
				sr.Post("/submit", h.Submit)
				sr.Post("/upload", h.Upload)
				sr.Put("/{id}/receipt", h.AttachReceipt)
			})

			er.Group(func(mr chi.Router) {
				mr.Use(rbac.RequireReviewer())
				mr.Get("/summary", h.Summary)
				mr.Put("/{id}/approve", h.Approve)
				mr.Put("/{id}/reject", h.Reject)
			})
		})
	})
}
