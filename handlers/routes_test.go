package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "admin-secret"

type discardNotifier struct{}

func (discardNotifier) Notify(*models.NotificationTask) bool { return true }

type fakeAlerts struct{ queued int }

func (f fakeAlerts) RunOnce(context.Context) (int, error) { return f.queued, nil }

func newTestApp(t *testing.T, limiter *shared.KeyedRateLimiter) *fiber.App {
	t.Helper()

	stores, err := store.NewMemoryStores("")
	require.NoError(t, err)

	utility := services.NewUtilityServiceIn(time.UTC)
	tokens := services.NewTokenIssuer("handler-secret", time.Hour)
	identity := services.NewIdentityService(stores.Users, stores.Applications, services.NewPasswordHasher(4), tokens, nil).
		WithAdminEmails(func(email string) bool { return email == "admin@example.com" })
	cache := services.NewCacheService()
	ipos := services.NewCachedIPOStore(stores.IPOs, cache)
	catalog := services.NewCatalogService(ipos, services.NewMarketSimulator(1), utility, services.NewAuditLogger("CatalogService"))
	applications := services.NewApplicationService(stores.Applications, stores.Users, ipos, discardNotifier{}, services.NewAuditLogger("ApplicationService"), nil)
	dashboard := services.NewDashboardService(stores.Users, ipos, stores.Applications, utility)

	app := fiber.New()
	RegisterRoutes(app, &Router{
		Auth:         NewAuthHandler(identity),
		IPOs:         NewIPOHandler(catalog),
		Applications: NewApplicationHandler(applications),
		Users:        NewUserHandler(dashboard, identity),
		Admin:        NewAdminHandler(applications, cache, fakeAlerts{queued: 2}),
		System:       NewSystemHandler(nil),
		Verifier:     tokens,
		AdminToken:   testAdminToken,
		Limiter:      limiter,
	})
	return app
}

type call struct {
	method  string
	path    string
	body    interface{}
	token   string
	headers map[string]string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func registerUser(t *testing.T, app *fiber.App, name, email string) string {
	t.Helper()
	status, body := do(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: fiber.Map{
		"name": name, "email": email, "password": "secret123", "panCard": "ABCDE1234F",
	}})
	require.Equal(t, http.StatusCreated, status, body)
	return body["token"].(string)
}

func createListing(t *testing.T, app *fiber.App) int64 {
	t.Helper()
	status, body := do(t, app, call{
		method:  http.MethodPost,
		path:    "/api/ipo",
		headers: map[string]string{"X-Admin-Token": testAdminToken},
		body: fiber.Map{
			"name": "Acme Tech", "openDate": "2026-03-10", "closeDate": "2026-03-12",
			"priceBand": "₹95-100", "lotSize": 150, "faceValue": 10,
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	return int64(body["data"].(map[string]interface{})["id"].(float64))
}

func TestApplicationScenario(t *testing.T) {
	app := newTestApp(t, nil)
	ipoID := createListing(t, app)
	registerUser(t, app, "Asha", "asha@example.com")

	status, body := do(t, app, call{method: http.MethodPost, path: "/api/auth/login", body: fiber.Map{
		"email": "asha@example.com", "password": "secret123",
	}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	token := body["token"].(string)

	apply := call{method: http.MethodPost, path: "/api/applications/apply", token: token, body: fiber.Map{
		"ipoId": ipoID, "category": "Retail", "bidPrice": 100, "quantity": 150,
	}}
	status, body = do(t, app, apply)
	require.Equal(t, http.StatusCreated, status, body)
	application := body["application"].(map[string]interface{})
	assert.Equal(t, "pending", application["status"])
	assert.Equal(t, 15000.0, application["totalAmount"])
	appID := int64(application["id"].(float64))

	status, body = do(t, app, apply)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "You have already applied for this IPO", body["error"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/applications/my-applications", token: token})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["count"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/user/stats", token: token})
	require.Equal(t, http.StatusOK, status)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, 1.0, stats["totalApplications"])
	assert.Equal(t, 1.0, stats["pendingApplications"])

	status, body = do(t, app, call{
		method: http.MethodPut, path: fmt.Sprintf("/api/applications/%d/payment", appID), token: token,
		body: fiber.Map{"paymentStatus": "completed"},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "completed", body["application"].(map[string]interface{})["paymentStatus"])
}

func TestPaymentOnAnotherUsersApplication(t *testing.T) {
	app := newTestApp(t, nil)
	ipoID := createListing(t, app)
	owner := registerUser(t, app, "Asha", "asha@example.com")
	other := registerUser(t, app, "Ravi", "ravi@example.com")

	status, body := do(t, app, call{method: http.MethodPost, path: "/api/applications/apply", token: owner, body: fiber.Map{
		"ipoId": ipoID, "category": "Retail", "bidPrice": 100, "quantity": 150,
	}})
	require.Equal(t, http.StatusCreated, status, body)
	appID := int64(body["application"].(map[string]interface{})["id"].(float64))

	status, body = do(t, app, call{
		method: http.MethodPut, path: fmt.Sprintf("/api/applications/%d/payment", appID), token: other,
		body: fiber.Map{"paymentStatus": "completed"},
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Application not found", body["error"])

	status, _ = do(t, app, call{method: http.MethodGet, path: fmt.Sprintf("/api/applications/%d", appID), token: other})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAuthResponses(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := do(t, app, call{method: http.MethodGet, path: "/api/user/dashboard"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Access denied. No token provided.", body["error"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/user/dashboard", token: "not-a-token"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Invalid or expired token", body["error"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/api/auth/login", body: fiber.Map{
		"email": "nobody@example.com", "password": "secret123",
	}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestAdminAccess(t *testing.T) {
	app := newTestApp(t, nil)
	userToken := registerUser(t, app, "Asha", "asha@example.com")
	adminToken := registerUser(t, app, "Admin", "admin@example.com")

	status, body := do(t, app, call{method: http.MethodGet, path: "/api/admin/cache", token: userToken})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", body["error"])

	status, _ = do(t, app, call{method: http.MethodGet, path: "/api/admin/cache", headers: map[string]string{"X-Admin-Token": "wrong"}})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/admin/cache", token: adminToken})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/api/admin/alerts/opening", headers: map[string]string{"X-Admin-Token": testAdminToken}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["queued"])

	status, _ = do(t, app, call{method: http.MethodDelete, path: "/api/ipo/1", token: userToken})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAdminDecisionFlow(t *testing.T) {
	app := newTestApp(t, nil)
	ipoID := createListing(t, app)
	token := registerUser(t, app, "Asha", "asha@example.com")

	_, body := do(t, app, call{method: http.MethodPost, path: "/api/applications/apply", token: token, body: fiber.Map{
		"ipoId": ipoID, "category": "Retail", "bidPrice": 100, "quantity": 150,
	}})
	appID := int64(body["application"].(map[string]interface{})["id"].(float64))
	decision := fmt.Sprintf("/api/admin/applications/%d/decision", appID)
	admin := map[string]string{"X-Admin-Token": testAdminToken}

	status, _ := do(t, app, call{method: http.MethodPost, path: decision, headers: admin, body: fiber.Map{"status": "approved"}})
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, app, call{method: http.MethodPost, path: decision, headers: admin, body: fiber.Map{
		"status": "allotted", "allotmentStatus": "full", "sharesAllotted": 150,
	}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "allotted", body["application"].(map[string]interface{})["status"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/user/notifications", token: token})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["notifications"])
}

func TestRegisterIsRateLimited(t *testing.T) {
	limiter := shared.NewKeyedRateLimiter(shared.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, IdleTTL: time.Minute})
	app := newTestApp(t, limiter)

	registerUser(t, app, "Asha", "asha@example.com")
	status, body := do(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: fiber.Map{
		"name": "Ravi", "email": "ravi@example.com", "password": "secret123",
	}})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, false, body["success"])
}

func TestSystemRoutes(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := do(t, app, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2.0.0", body["version"])
	assert.Contains(t, body, "endpoints")

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/nothing-here"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Route not found", body["error"])
	assert.Equal(t, "/api/nothing-here", body["path"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/ipo/abc"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "IPO not found", body["error"])
}

func TestHealthReportsFailingProbe(t *testing.T) {
	app := fiber.New()
	handler := NewSystemHandler(map[string]HealthProbe{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	app.Get("/health", handler.Health)

	status, body := do(t, app, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEGRADED", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["redis"])
}
