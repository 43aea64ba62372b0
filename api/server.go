/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. requireAuth / requireOperator: JWT session checks on protected groups

ROUTE GROUPS:
  /api/auth/*          Public: login, register
  /api/...             Authenticated program participants
  operator-only routes Require an INTERNAL-level token

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Token issuing and validation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/loyalty"
)

type contextKey string

const claimsKey contextKey = "claims"

// claimsFrom returns the session claims stored by requireAuth. Only safe
// on routes behind that middleware.
func claimsFrom(r *http.Request) *auth.Claims {
	return r.Context().Value(claimsKey).(*auth.Claims)
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", h.GetMe)
				r.Put("/", h.UpdateMe)
				r.Get("/balance", h.GetMyBalance)
				r.Get("/transactions", h.GetMyTransactions)
				r.Get("/actions", h.GetMyActions)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListMyProjects)
				r.Post("/", h.CreateProject)
				r.Get("/{id}/forms", h.ListProjectForms)
			})

			r.Get("/form-types", h.ListFormTypes)

			r.Route("/forms", func(r chi.Router) {
				r.Post("/", h.SubmitForm)
				r.Get("/{id}", h.GetForm)
			})

			r.Get("/products", h.ListProducts)
			r.Post("/redemptions", h.CreateRedemption)

			// Operator routes
			r.Group(func(r chi.Router) {
				r.Use(h.requireOperator)

				r.Get("/users", h.ListUsers)
				r.Delete("/users/{id}", h.DeactivateUser)

				r.Route("/companies", func(r chi.Router) {
					r.Get("/", h.ListCompanies)
					r.Post("/", h.CreateCompany)
					r.Post("/{id}/merge", h.MergeCompany)
					r.Delete("/{id}", h.DeleteCompany)
				})

				r.Post("/form-types", h.CreateFormType)
				r.Post("/forms/{id}/approve", h.ApproveForm)
				r.Post("/forms/{id}/reject", h.RejectForm)

				r.Post("/products", h.CreateProduct)
				r.Get("/redemptions", h.ListRedemptions)
				r.Post("/redemptions/{id}/approve", h.ApproveRedemption)
				r.Post("/redemptions/{id}/reject", h.RejectRedemption)

				r.Post("/admin/reconcile", h.Reconcile)
				r.Post("/admin/seed", h.Seed)
			})
		})
	})

	return r
}

// requireAuth validates the Bearer token and stores its claims on the
// request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := h.Tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOperator gates routes on INTERNAL-level sessions. Must be nested
// inside requireAuth.
func (h *Handler) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims.Level != loyalty.LevelInternal {
			writeError(w, http.StatusForbidden, "Operator access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
