//go:build integration

package app_test

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkotelnikov/shopadmin/internal/app"
	"github.com/bkotelnikov/shopadmin/internal/config"
	"github.com/bkotelnikov/shopadmin/internal/testutil"
)

var (
	testServer    *httptest.Server
	testValidator *testutil.OpenAPIValidator
	testDB        *pgxpool.Pool
)

// OpenAPI spec path relative to this package directory.
const openAPISpecPath = "../../api/openapi/openapi.yaml"

func newTestClient(t *testing.T) *testutil.Client {
	t.Helper()
	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.SetT(t)
	return client
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Database.URL = pgContainer.ConnectionString
	cfg.Database.Migrate = true
	cfg.Log.Level = "error"
	cfg.Log.Format = "text"
	cfg.JWT.SecretKey = "test-secret-key"
	cfg.Session.InitTimeout = time.Second
	// Generous limit so rate limiting does not interfere with tests.
	cfg.RateLimit.LoginRPS = 1000
	cfg.RateLimit.LoginBurst = 1000

	application, err := app.New(&cfg)
	if err != nil {
		log.Fatalf("create app: %v", err)
	}

	testServer = httptest.NewServer(application.Router())
	defer testServer.Close()

	testValidator, err = testutil.LoadOpenAPIValidator(openAPISpecPath)
	if err != nil {
		log.Fatalf("load openapi validator: %v", err)
	}

	testDB, err = pgxpool.New(ctx, pgContainer.ConnectionString)
	if err != nil {
		log.Fatalf("connect test db: %v", err)
	}
	defer testDB.Close()

	code := m.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = application.Shutdown(shutdownCtx)

	os.Exit(code)
}

// registerAs registers an account and promotes it to the given role
// directly in the database.
func registerAs(t *testing.T, client *testutil.Client, username, email, role string) {
	t.Helper()

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, err = testDB.Exec(context.Background(),
		`UPDATE users SET role = $1 WHERE email = $2`, role, email)
	require.NoError(t, err)
}

func TestAuthFlow(t *testing.T) {
	client := newTestClient(t)
	registerAs(t, client, "auth-admin", "auth-admin@example.com", "Admin")

	client.LoginAs(t, "auth-admin@example.com", "password123")

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)

	var me struct {
		Data struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &me)
	assert.Equal(t, "auth-admin", me.Data.Username)
	assert.Equal(t, "Admin", me.Data.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	client := newTestClient(t)
	registerAs(t, client, "wrongpw", "wrongpw@example.com", "Simple")

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    "wrongpw@example.com",
		"password": "not-the-password",
	})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_BlockedUserGetsForbidden(t *testing.T) {
	client := newTestClient(t)
	registerAs(t, client, "blocked", "blocked@example.com", "Simple")

	_, err := testDB.Exec(context.Background(),
		`UPDATE users SET is_blocked = TRUE WHERE email = $1`, "blocked@example.com")
	require.NoError(t, err)

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    "blocked@example.com",
		"password": "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, testutil.ReadBody(t, resp), "blocked")
}

func TestRoleGates(t *testing.T) {
	client := newTestClient(t)
	registerAs(t, client, "simple-user", "simple@example.com", "Simple")
	client.LoginAs(t, "simple@example.com", "password123")

	t.Run("simple can read products", func(t *testing.T) {
		resp, err := client.GET("/api/v1/products")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("simple cannot create products", func(t *testing.T) {
		resp, err := client.POST("/api/v1/products", map[string]string{
			"name": "x", "category": "y", "price": "1.00",
		})
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("simple is redirected away from user management", func(t *testing.T) {
		// Don't follow the 303 so the redirect itself is observable.
		client.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		defer func() { client.HTTPClient.CheckRedirect = nil }()

		resp, err := client.GET("/api/v1/users")
		require.NoError(t, err)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/products", resp.Header.Get("Location"))
		assert.Contains(t, testutil.ReadBody(t, resp), "/products")
	})
}

func TestCatalogLifecycleWithAudit(t *testing.T) {
	client := newTestClient(t)
	registerAs(t, client, "catalog-admin", "catalog-admin@example.com", "Admin")
	client.LoginAs(t, "catalog-admin@example.com", "password123")

	resp, err := client.POST("/api/v1/categories", map[string]interface{}{
		"name": "Drinks",
	})
	require.NoError(t, err)
	var category struct {
		Data struct {
			ID       string `json:"id"`
			IsActive bool   `json:"is_active"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &category)
	assert.True(t, category.Data.IsActive, "categories default to active")

	resp, err = client.POST("/api/v1/products", map[string]string{
		"name":     "Cola",
		"category": "Drinks",
		"price":    "1.50",
	})
	require.NoError(t, err)
	var product struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &product)

	resp, err = client.PATCH("/api/v1/products/"+product.Data.ID, map[string]string{
		"price": "1.80",
	})
	require.NoError(t, err)
	var updated struct {
		Data struct {
			Name  string `json:"name"`
			Price string `json:"price"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, "Cola", updated.Data.Name, "absent fields stay unchanged")
	assert.Equal(t, "1.80", updated.Data.Price)

	// Cascade: deleting the category removes its products too.
	resp, err = client.DELETE("/api/v1/categories/" + category.Data.ID)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.GET("/api/v1/products/" + product.Data.ID)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The audit queue is asynchronous; poll briefly for the entries.
	require.Eventually(t, func() bool {
		resp, err := client.GET("/api/v1/audit?limit=50")
		if err != nil {
			return false
		}
		var audit struct {
			Data []struct {
				Action    string `json:"action"`
				ActorName string `json:"actor_name"`
			} `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &audit)

		actions := make(map[string]bool)
		for _, e := range audit.Data {
			actions[e.Action] = true
			if e.ActorName != "catalog-admin" && e.ActorName != "" {
				continue
			}
		}
		return actions["Create category"] && actions["Create product"] &&
			actions["Update product"] && actions["Delete category"]
	}, 5*time.Second, 100*time.Millisecond)
}

func TestUserAdministration(t *testing.T) {
	client := newTestClient(t)
	registerAs(t, client, "users-admin", "users-admin@example.com", "Admin")
	client.LoginAs(t, "users-admin@example.com", "password123")

	resp, err := client.POST("/api/v1/users", map[string]string{
		"username": "managed",
		"email":    "managed@example.com",
		"password": "password123",
		"role":     "Advanced",
	})
	require.NoError(t, err)
	var created struct {
		Data struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)
	assert.Equal(t, "Advanced", created.Data.Role)

	resp, err = client.PATCH("/api/v1/users/"+created.Data.ID, map[string]interface{}{
		"is_blocked": true,
	})
	require.NoError(t, err)
	var patched struct {
		Data struct {
			Blocked bool `json:"is_blocked"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &patched)
	assert.True(t, patched.Data.Blocked)

	// Profile deletion keeps the credential behind.
	resp, err = client.DELETE("/api/v1/users/" + created.Data.ID)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var credCount int
	err = testDB.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM credentials WHERE email = $1`, "managed@example.com").Scan(&credCount)
	require.NoError(t, err)
	assert.Equal(t, 1, credCount, "credential must survive profile deletion")
}
