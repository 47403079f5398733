package router

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketplace/internal/middleware"
	"marketplace/internal/services"
	"marketplace/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock, string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	disk, err := storage.NewDisk(dir)
	require.NoError(t, err)
	janitor := storage.NewJanitor(disk, zerolog.Nop(), 4)
	t.Cleanup(janitor.Close)

	ids, err := services.NewProductIDs(1)
	require.NoError(t, err)

	log := zerolog.Nop()
	r := SetupRouter(Deps{
		Users:        services.NewUserService(db, log),
		Products:     services.NewProductService(db, log),
		Transactions: services.NewTransactionService(db, log),
		Geo:          services.NewGeoService("http://127.0.0.1:1", "key", 0, log),
		Files:        disk,
		Janitor:      janitor,
		ProductIDs:   ids,
		Metrics:      middleware.NewMetrics(),
		UploadDir:    dir,
	}, log)
	return r, mock, dir
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestListProductsRoute(t *testing.T) {
	r, mock, _ := newTestRouter(t)

	mock.ExpectQuery(`SELECT id, title, description, price, stock, image, owner FROM products WHERE owner = \?`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "price", "stock", "image", "owner"}).
			AddRow("1", "Mug", "", "10", 2, nil, "alice"))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/products?user=alice", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[{"id":"1","title":"Mug","description":"","price":"10","stock":2,"image":null,"owner":"alice"}]`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRoutesRequireBodyType(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/products", nil)
	req.Header.Set("Content-Type", "text/plain")
	w := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadsServeFilesButNotListings(t *testing.T) {
	r, _, dir := newTestRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1-mug.png"), []byte("png"), 0o644))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/uploads/1-mug.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownMethodAndPath(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodPatch, "/api/products/1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)

	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `marketplace_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-User")

	w := serve(r, req)
	assert.Less(t, w.Code, 300)
	assert.Equal(t, "https://shop.example.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-user")
}

func TestCORSOnSimpleRequest(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://shop.example.test")

	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://shop.example.test", w.Header().Get("Access-Control-Allow-Origin"))
}
