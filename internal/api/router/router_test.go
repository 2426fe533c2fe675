package router

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/internal/middleware"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/internal/service"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "8080", Mode: gin.TestMode, Swagger: true},
		Store:  config.StoreConfig{Backend: config.BackendFile, File: config.FileStoreConfig{Dir: "posts"}},
	}
}

func setup(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	repo, err := repository.NewFilePostRepository(afero.NewMemMapFs(), cfg.Store.File.Dir)
	require.NoError(t, err)
	r, err := Setup(cfg, service.NewPostService(repo))
	require.NoError(t, err)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostLifecycle(t *testing.T) {
	r := setup(t, testConfig())

	w := serve(r, http.MethodPost, "/api/posts", `{"title":"A","content":"B","category":"C","tags":["x"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = serve(r, http.MethodPost, "/api/posts", `{"title":"D","content":"E","category":"F","tags":["y"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodGet, "/api/posts/filter?tag=x", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"A"`)
	assert.NotContains(t, w.Body.String(), `"title":"D"`)

	w = serve(r, http.MethodPut, "/api/posts/2", `{"title":"new"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"new"`)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodDelete, "/api/posts/2", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/posts/2", "").Code)
}

func TestNoRoute(t *testing.T) {
	r := setup(t, testConfig())

	w := serve(r, http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"route GET /api/nothing not found"}`, w.Body.String())
}

func TestGzip(t *testing.T) {
	r := setup(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"test route success!"}`, string(body))
}

func TestSwaggerToggle(t *testing.T) {
	cfg := testConfig()
	w := serve(setup(t, cfg), http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/posts/filter")

	cfg.Server.Swagger = false
	w = serve(setup(t, cfg), http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	r := setup(t, cfg)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/healthz", "").Code)
}
