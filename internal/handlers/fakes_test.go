package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"

	"marketplace/internal/identity"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]models.User)}
}

func (s *memoryUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &u, nil
}

func (s *memoryUsers) Create(_ context.Context, username, password, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return nil, services.ErrConflict
	}
	u := models.User{Username: username, Email: email, PasswordHash: password}
	s.users[username] = u
	return &u, nil
}

func (s *memoryUsers) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.FindByUsername(ctx, username)
	if err != nil || u.PasswordHash != password {
		return nil, services.ErrInvalidCredentials
	}
	return u, nil
}

type memoryProducts struct {
	mu       sync.Mutex
	products map[string]models.Product

	// beforeDelete runs with the lock held, standing in for a write that
	// commits between the handler's read and its delete.
	beforeDelete func(map[string]models.Product)
}

func newMemoryProducts(seed ...models.Product) *memoryProducts {
	s := &memoryProducts{products: make(map[string]models.Product)}
	for _, p := range seed {
		s.products[p.ID] = p
	}
	return s
}

func (s *memoryProducts) ListAll(_ context.Context, owner *string) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Product{}
	for _, p := range s.products {
		p := p
		if owner != nil && (p.Owner == nil || *p.Owner != *owner) {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryProducts) GetByID(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &p, nil
}

func (s *memoryProducts) Create(_ context.Context, p *models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return nil, services.ErrConflict
	}
	created := *p
	if created.Title == "" {
		created.Title = models.DefaultProductTitle
	}
	s.products[p.ID] = created
	return &created, nil
}

func (s *memoryProducts) Update(_ context.Context, id string, upd models.ProductUpdate) (*models.Product, *models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.products[id]
	if !ok {
		return nil, nil, services.ErrNotFound
	}
	next := upd.Apply(prev)
	s.products[id] = next
	return &prev, &next, nil
}

func (s *memoryProducts) Delete(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeDelete != nil {
		s.beforeDelete(s.products)
	}
	p, ok := s.products[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	delete(s.products, id)
	return &p, nil
}

type memoryTransactions struct {
	mu   sync.Mutex
	list []models.Transaction
}

func (s *memoryTransactions) ListAll(_ context.Context, owner *string) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Transaction{}
	for i := len(s.list) - 1; i >= 0; i-- {
		t := s.list[i]
		if owner != nil && (t.Owner == nil || *t.Owner != *owner) {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

func (s *memoryTransactions) Create(_ context.Context, t *models.Transaction) (*models.Transaction, error) {
	total, count, err := services.Summarize(t.Items)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *t
	rec.ID = int64(len(s.list) + 1)
	rec.Total = total
	rec.ItemCount = count
	rec.ProofUploaded = rec.ProofFilename != nil
	if rec.PaymentMethod == "" {
		rec.PaymentMethod = models.PaymentMethodCash
	}
	s.list = append(s.list, rec)
	return &rec, nil
}

func (s *memoryTransactions) Summary(ctx context.Context, owner *string) (*models.LedgerSummary, error) {
	list, _ := s.ListAll(ctx, owner)
	var sum models.LedgerSummary
	for _, t := range list {
		sum.Transactions++
		sum.Revenue += t.Total
		sum.ItemsSold += t.ItemCount
	}
	return &sum, nil
}

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "p" + strconv.Itoa(g.n)
}

// testEnv wires handlers the way the router does, with in-memory stores and
// real disk storage in a temp dir.
type testEnv struct {
	router       *mux.Router
	users        *memoryUsers
	products     *memoryProducts
	transactions *memoryTransactions
	disk         *storage.Disk
	janitor      *storage.Janitor
}

func newTestEnv(t *testing.T, seed ...models.Product) *testEnv {
	t.Helper()
	disk, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		users:        newMemoryUsers(),
		products:     newMemoryProducts(seed...),
		transactions: &memoryTransactions{},
		disk:         disk,
		janitor:      storage.NewJanitor(disk, zerolog.Nop(), 8),
	}
	t.Cleanup(env.janitor.Close)

	log := zerolog.Nop()
	auth := NewAuthHandler(env.users, log)
	products := NewProductHandler(env.products, disk, env.janitor, &sequentialIDs{}, log)
	transactions := NewTransactionHandler(env.transactions, disk, env.janitor, log)

	r := mux.NewRouter()
	r.Use(middleware.Identity(identity.NewRequestResolver()))
	r.HandleFunc("/register", auth.Register).Methods("POST")
	r.HandleFunc("/login", auth.Login).Methods("POST")
	r.HandleFunc("/logout", auth.Logout).Methods("GET", "POST")
	r.HandleFunc("/api/whoami", auth.WhoAmI).Methods("GET")
	r.HandleFunc("/api/products", products.List).Methods("GET")
	r.HandleFunc("/api/products", products.Create).Methods("POST")
	r.HandleFunc("/api/products/{id}", products.Get).Methods("GET")
	r.HandleFunc("/api/products/{id}", products.Update).Methods("PUT")
	r.HandleFunc("/api/products/{id}", products.Delete).Methods("DELETE")
	r.HandleFunc("/api/transactions", transactions.List).Methods("GET")
	r.HandleFunc("/api/transactions", transactions.Create).Methods("POST")
	r.HandleFunc("/api/transactions/summary", transactions.Summary).Methods("GET")
	env.router = r
	return env
}

// storeImage puts a real file on disk and returns its reference.
func (e *testEnv) storeImage(t *testing.T, name string) string {
	t.Helper()
	ref, err := e.disk.Save(storage.ProductImage, name, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	return ref
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decode(t *testing.T, body io.Reader, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}

func strPtr(s string) *string { return &s }

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// stored reports whether the file behind ref is on disk. Call after the
// janitor has drained when checking removals.
func (e *testEnv) stored(ref string) bool {
	_, err := os.Stat(filepath.Join(e.disk.Dir(), path.Base(ref)))
	return err == nil
}
