package handlers

import (
	"github.com/fenilmodi00/ipo-tracker/middleware"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router carries everything RegisterRoutes mounts. A nil Limiter disables rate limiting and
// a nil Metrics disables the /metrics endpoint.
type Router struct {
	Auth         *AuthHandler
	IPOs         *IPOHandler
	Applications *ApplicationHandler
	Users        *UserHandler
	Admin        *AdminHandler
	System       *SystemHandler

	Verifier   middleware.TokenVerifier
	AdminToken string
	Limiter    *shared.KeyedRateLimiter
	Metrics    *shared.ServiceMetrics
}

// RegisterRoutes mounts the API on app. The JSON 404 handler is registered last.
func RegisterRoutes(app *fiber.App, r *Router) {
	app.Get("/health", r.System.Health)
	if r.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	requireAuth := middleware.Auth(r.Verifier)
	requireAdmin := middleware.RequireAdmin(r.AdminToken)
	optionalAuth := middleware.OptionalAuth(r.Verifier)
	limited := func(c *fiber.Ctx) error { return c.Next() }
	if r.Limiter != nil {
		limited = middleware.RateLimit(r.Limiter)
	}

	api := app.Group("/api")
	api.Get("/", r.System.Index)

	// IPO Routes
	ipo := api.Group("/ipo")
	ipo.Get("/", r.IPOs.GetIPOs)
	ipo.Get("/:id", r.IPOs.GetIPOByID)
	ipo.Get("/:id/subscription", r.IPOs.GetSubscription)
	ipo.Post("/", optionalAuth, requireAdmin, r.IPOs.CreateIPO)
	ipo.Put("/:id", optionalAuth, requireAdmin, r.IPOs.UpdateIPO)
	ipo.Delete("/:id", optionalAuth, requireAdmin, r.IPOs.DeleteIPO)

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", limited, r.Auth.Register)
	auth.Post("/login", limited, r.Auth.Login)
	auth.Get("/profile", requireAuth, r.Auth.Profile)
	auth.Put("/profile", requireAuth, r.Auth.UpdateProfile)

	// Application Routes
	applications := api.Group("/applications")
	applications.Post("/check-allotment", limited, r.Applications.CheckAllotment)
	applications.Post("/apply", requireAuth, r.Applications.Apply)
	applications.Get("/my-applications", requireAuth, r.Applications.MyApplications)
	applications.Get("/:id", requireAuth, r.Applications.GetApplication)
	applications.Put("/:id/payment", requireAuth, r.Applications.UpdatePayment)

	// User Routes
	user := api.Group("/user", requireAuth)
	user.Get("/dashboard", r.Users.GetDashboard)
	user.Get("/stats", r.Users.GetStats)
	user.Get("/applied-ipos", r.Users.GetAppliedIPOs)
	user.Get("/notifications", r.Users.GetNotifications)
	user.Post("/bank-account", r.Users.AddBankAccount)
	user.Post("/upi", r.Users.AddUPIID)
	user.Post("/demat-account", r.Users.AddDematAccount)
	user.Delete("/account", r.Users.DeleteAccount)

	// Admin Routes
	admin := api.Group("/admin", optionalAuth, requireAdmin)
	admin.Post("/applications/:id/decision", r.Admin.RecordDecision)
	admin.Post("/alerts/opening", r.Admin.TriggerOpeningAlerts)
	admin.Get("/cache", r.Admin.CacheStats)
	admin.Delete("/cache", r.Admin.ClearCache)

	app.Use(r.System.NotFound)
}
