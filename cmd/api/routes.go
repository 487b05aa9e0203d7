package main

import (
	"net/http"

	"github.com/crafted/backend/internal/auth"
	"github.com/crafted/backend/internal/brand"
	"github.com/crafted/backend/internal/dashboard"
	"github.com/crafted/backend/internal/metrics"
	"github.com/crafted/backend/internal/middleware"
	"github.com/crafted/backend/internal/models"
	"github.com/crafted/backend/internal/payments"
	"github.com/crafted/backend/internal/slackbot"
	"github.com/crafted/backend/internal/tasks"
)

type routerDeps struct {
	Auth         *auth.Handler
	Tasks        *tasks.Handler
	Payments     *payments.Handler
	Webhooks     *payments.WebhookHandler
	Interactions *slackbot.InteractionHandler
	Brands       *brand.Handler
	Dashboard    *dashboard.Handler
	Tokens       middleware.TokenValidator
	Users        middleware.UserLoader
	Metrics      *metrics.Collector
	RateLimit    *middleware.RateLimiter
}

// newRouter builds the full route table. Authenticated routes run
// Auth -> RateLimit -> (RequireRole) -> handler; webhook endpoints carry
// their own signature verification instead.
func newRouter(d routerDeps) *http.ServeMux {
	mux := http.NewServeMux()

	authn := middleware.Auth(d.Tokens, d.Users)
	authed := func(h http.HandlerFunc) http.Handler {
		return authn(d.RateLimit.Middleware(h))
	}
	role := func(h http.HandlerFunc, roles ...string) http.Handler {
		return authn(d.RateLimit.Middleware(middleware.RequireRole(roles...)(h)))
	}

	// Public
	mux.Handle("POST /api/v1/auth/register", d.RateLimit.Middleware(http.HandlerFunc(d.Auth.Register)))
	mux.Handle("POST /api/v1/auth/login", d.RateLimit.Middleware(http.HandlerFunc(d.Auth.Login)))
	mux.HandleFunc("POST /webhooks/stripe", d.Webhooks.HandleStripe)
	mux.HandleFunc("POST /webhooks/slack/interactions", d.Interactions.Handle)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", d.Metrics.Handler())

	// Account
	mux.Handle("GET /api/v1/account/me", authed(d.Dashboard.Me))
	mux.Handle("GET /api/v1/credits", authed(d.Dashboard.ListCredits))

	// Tasks
	mux.Handle("POST /api/v1/tasks", role(d.Tasks.Create, models.RoleClient))
	mux.Handle("GET /api/v1/tasks", authed(d.Tasks.List))
	mux.Handle("GET /api/v1/tasks/{id}", authed(d.Tasks.Get))
	mux.Handle("POST /api/v1/tasks/{id}/assign", role(d.Tasks.Assign, models.RoleAdmin))
	mux.Handle("POST /api/v1/tasks/{id}/start", role(d.Tasks.Start, models.RoleFreelancer))
	mux.Handle("POST /api/v1/tasks/{id}/deliverables", role(d.Tasks.SubmitDeliverable, models.RoleFreelancer))
	mux.Handle("POST /api/v1/tasks/{id}/revisions", role(d.Tasks.RequestRevision, models.RoleClient, models.RoleAdmin))
	mux.Handle("POST /api/v1/tasks/{id}/approve", role(d.Tasks.Approve, models.RoleClient, models.RoleAdmin))
	mux.Handle("POST /api/v1/tasks/{id}/cancel", authed(d.Tasks.Cancel))

	// Task collaboration
	mux.Handle("GET /api/v1/tasks/{id}/messages", authed(d.Tasks.ListMessages))
	mux.Handle("POST /api/v1/tasks/{id}/messages", authed(d.Tasks.PostMessage))
	mux.Handle("GET /api/v1/tasks/{id}/messages/stream", authed(d.Tasks.StreamMessages))
	mux.Handle("GET /api/v1/tasks/{id}/files", authed(d.Tasks.ListFiles))
	mux.Handle("POST /api/v1/tasks/{id}/files", authed(d.Tasks.UploadFile))

	// Credits and payouts
	mux.Handle("POST /api/v1/credits/checkout", role(d.Payments.Checkout, models.RoleClient))
	mux.Handle("POST /api/v1/payouts/onboard", role(d.Payments.Onboard, models.RoleFreelancer))
	mux.Handle("GET /api/v1/payouts/balance", role(d.Payments.Balance, models.RoleFreelancer))
	mux.Handle("POST /api/v1/payouts", role(d.Payments.RequestPayout, models.RoleFreelancer))
	mux.Handle("GET /api/v1/payouts", role(d.Payments.ListPayouts, models.RoleFreelancer))

	// Brand profiles and style matching
	mux.Handle("POST /api/v1/brands", role(d.Brands.CreateBrand, models.RoleClient, models.RoleAdmin))
	mux.Handle("GET /api/v1/brands", authed(d.Brands.ListBrands))
	mux.Handle("GET /api/v1/brands/{id}", authed(d.Brands.GetBrand))
	mux.Handle("POST /api/v1/styles", role(d.Brands.CreateStyle, models.RoleAdmin))
	mux.Handle("GET /api/v1/styles/match", authed(d.Brands.MatchStyles))

	// Admin
	mux.Handle("GET /api/v1/admin/users", role(d.Dashboard.ListUsers, models.RoleAdmin))
	mux.Handle("GET /api/v1/admin/payouts", role(d.Dashboard.ListPayouts, models.RoleAdmin))
	mux.Handle("DELETE /api/v1/admin/tasks/{id}", role(d.Dashboard.DeleteTask, models.RoleAdmin))

	return mux
}
