package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovewall/love-wall/internal/web/frontend"
	"github.com/lovewall/love-wall/internal/web/notes/controller"
	"github.com/lovewall/love-wall/internal/web/notes/dao"
	"github.com/lovewall/love-wall/internal/web/notes/identity"
	"github.com/lovewall/love-wall/internal/web/notes/service"
	"github.com/lovewall/love-wall/library/log"
)

var (
	ginModeOnce sync.Once

	// metrics register globally, so the engine is built once per test binary
	testServerOnce sync.Once
	testServer     *gin.Engine
	testServerErr  error
)

func setupGinTestMode() {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	setupGinTestMode()

	testServerOnce.Do(func() {
		svc, err := service.NewService(dao.NewMemory(), nil, nil, service.Settings{})
		if err != nil {
			testServerErr = err
			return
		}
		notes, err := controller.New(svc, identity.NewHeaderResolver(false), time.Second)
		if err != nil {
			testServerErr = err
			return
		}

		testServer, testServerErr = NewServer(Options{
			Notes: notes,
			Site: SiteConfig{
				Title:          "Test Wall",
				Theme:          "dark",
				ImageUploadURL: defaultImageUploadURL,
				ImageClientID:  "client-123",
			},
			CORSAllowedHosts: []string{"lovewall.example"},
		})
	})

	require.NoError(t, testServerErr)
	return testServer
}

func TestNewServerRequiresNotes(t *testing.T) {
	_, err := NewServer(Options{})
	require.Error(t, err)
}

func TestServerRoutes(t *testing.T) {
	server := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "ok", strings.TrimSpace(w.Body.String()))
	})

	t.Run("site config", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/site-config", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{
			"title": "Test Wall",
			"theme": "dark",
			"imageUploadUrl": "https://api.imgur.com/3/image",
			"imageClientId": "client-123"
		}`, w.Body.String())
	})

	t.Run("notes api", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notes?sort=popular", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	})

	t.Run("index", func(t *testing.T) {
		for _, target := range []string{"/", "/some/client/route"} {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
			require.Equal(t, http.StatusOK, w.Code, target)
			require.Contains(t, w.Header().Get("Content-Type"), "text/html")
			require.Contains(t, w.Body.String(), `<section id="notes"`)
		}
	})

	t.Run("assets", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app.js", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "/api/notes")

		w = httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing.css", nil))
		require.Equal(t, http.StatusNotFound, w.Code)

		w = httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFrontendSPAHandler(t *testing.T) {
	_, err := newFrontendSPAHandler(nil, frontend.Assets())
	require.Error(t, err)

	h, err := newFrontendSPAHandler(log.Logger.Named("spa_test"), frontend.Assets())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/style.css", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "@media (prefers-color-scheme: dark)")
	require.Contains(t, w.Body.String(), "html.dark")
}

func TestLoadSiteConfig(t *testing.T) {
	keys := []string{
		"settings.web.title",
		"settings.web.theme",
		"settings.image_host.upload_url",
		"settings.image_host.client_id",
	}
	old := map[string]any{}
	for _, k := range keys {
		old[k] = gconfig.Shared.Get(k)
	}
	t.Cleanup(func() {
		for k, v := range old {
			gconfig.Shared.Set(k, v)
		}
	})

	for _, k := range keys {
		gconfig.Shared.Set(k, "")
	}
	site := LoadSiteConfig()
	require.Equal(t, defaultSiteTitle, site.Title)
	require.Equal(t, defaultImageUploadURL, site.ImageUploadURL)
	require.Empty(t, site.Theme)

	gconfig.Shared.Set("settings.web.title", " 表白墙 ")
	gconfig.Shared.Set("settings.web.theme", "Dark")
	gconfig.Shared.Set("settings.image_host.client_id", "abc")
	site = LoadSiteConfig()
	require.Equal(t, "表白墙", site.Title)
	require.Equal(t, "dark", site.Theme)
	require.Equal(t, "abc", site.ImageClientID)

	gconfig.Shared.Set("settings.web.theme", "sepia")
	require.Empty(t, LoadSiteConfig().Theme)
}

// TestNormalizeHost verifies host normalization strips ports and lowercases values.
func TestNormalizeHost(t *testing.T) {
	require.Equal(t, "lovewall.example", normalizeHost("LoveWall.Example:443"))
	require.Equal(t, "127.0.0.1", normalizeHost("127.0.0.1:8080"))
	require.Equal(t, "fd00::1", normalizeHost("[fd00::1]"))
	require.Equal(t, []string{"a.example"}, normalizeHostList([]string{" ", "A.example."}))
}

func TestAllowCORS(t *testing.T) {
	setupGinTestMode()
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		origin         string
		expectedStatus int
		expectedCORS   bool
	}{
		{
			name:           "No origin header - should pass through",
			method:         "GET",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Allowed host",
			method:         "GET",
			origin:         "https://lovewall.example",
			expectedStatus: http.StatusOK,
			expectedCORS:   true,
		},
		{
			name:           "Allowed subdomain - PATCH request",
			method:         "PATCH",
			origin:         "https://www.lovewall.example",
			expectedStatus: http.StatusOK,
			expectedCORS:   true,
		},
		{
			name:           "Allowed origin - OPTIONS preflight",
			method:         "OPTIONS",
			origin:         "https://lovewall.example",
			expectedStatus: http.StatusNoContent,
			expectedCORS:   true,
		},
		{
			name:           "Invalid origin - OPTIONS preflight",
			method:         "OPTIONS",
			origin:         "https://evil.com",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Invalid origin - GET request",
			method:         "GET",
			origin:         "https://evil.com",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Suffix of a different domain",
			method:         "GET",
			origin:         "https://lovewall.example.evil.com",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Domain that contains the host but is not a subdomain",
			method:         "GET",
			origin:         "https://notlovewall.example",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Case insensitive domain matching",
			method:         "GET",
			origin:         "https://WWW.LoveWall.example:8443",
			expectedStatus: http.StatusOK,
			expectedCORS:   true,
		},
		{
			name:           "Malformed origin",
			method:         "GET",
			origin:         "not-a-valid-url",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(allowCORS([]string{"lovewall.example"}))
			router.Any("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Status code mismatch")
			if tt.expectedCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Equal(t, "GET, POST, PATCH, DELETE, OPTIONS, HEAD", w.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
				assert.Equal(t, "Origin", w.Header().Get("Vary"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestAllowCORSEmptyAllowList(t *testing.T) {
	setupGinTestMode()

	router := gin.New()
	router.Use(allowCORS(nil))
	router.Any("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://lovewall.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestNewStatusHandler(t *testing.T) {
	setupGinTestMode()
	t.Parallel()

	handler := newStatusHandler()
	router := gin.New()
	router.GET("/status", handler)
	router.HEAD("/status", handler)
	router.OPTIONS("/status", handler)

	t.Run("GET returns ok", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", strings.TrimSpace(w.Body.String()))
		assert.Equal(t, "GET, HEAD, OPTIONS", w.Header().Get("Allow"))
	})

	t.Run("HEAD returns 200", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodHead, "/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("OPTIONS returns 200", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodOptions, "/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}
