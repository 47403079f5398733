package router

import (
	"net/http"
	"strings"
	"time"

	"marketplace/internal/handlers"
	"marketplace/internal/identity"
	"marketplace/internal/middleware"
	"marketplace/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const slowRequest = time.Second

type Deps struct {
	Users        handlers.UserStore
	Products     handlers.ProductStore
	Transactions handlers.TransactionStore
	Geo          handlers.GeoLocator
	Files        handlers.FileStore
	Janitor      handlers.FileJanitor
	ProductIDs   handlers.IDGenerator
	Identity     identity.Resolver
	Metrics      *middleware.Metrics

	UploadDir string
	RateLimit rate.Limit
	RateBurst int
}

// SetupRouter builds the route table and middleware chain. CORS wraps the
// whole router because mux middleware only runs for matched routes and no
// route accepts OPTIONS preflights.
func SetupRouter(d Deps, logger zerolog.Logger) http.Handler {
	if d.Identity == nil {
		d.Identity = identity.NewRequestResolver()
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewMetrics()
	}

	authHandler := handlers.NewAuthHandler(d.Users, logger)
	productHandler := handlers.NewProductHandler(d.Products, d.Files, d.Janitor, d.ProductIDs, logger)
	transactionHandler := handlers.NewTransactionHandler(d.Transactions, d.Files, d.Janitor, logger)
	geoHandler := handlers.NewGeoHandler(d.Geo, logger)

	r := mux.NewRouter()

	r.Use(middleware.ErrorHandling(logger))
	r.Use(d.Metrics.Middleware())
	r.Use(middleware.PerformanceMonitoring(logger, slowRequest))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	if d.RateLimit > 0 {
		r.Use(middleware.NewRateLimiter(d.RateLimit, d.RateBurst).Middleware())
	}
	r.Use(middleware.Identity(d.Identity))

	validate := middleware.RequestValidation()

	r.HandleFunc("/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/logout", authHandler.Logout).Methods("GET", "POST")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/whoami", authHandler.WhoAmI).Methods("GET")

	api.HandleFunc("/products", productHandler.List).Methods("GET")
	api.Handle("/products", validate(http.HandlerFunc(productHandler.Create))).Methods("POST")
	api.HandleFunc("/products/{id}", productHandler.Get).Methods("GET")
	api.Handle("/products/{id}", validate(http.HandlerFunc(productHandler.Update))).Methods("PUT")
	api.HandleFunc("/products/{id}", productHandler.Delete).Methods("DELETE")

	api.HandleFunc("/transactions", transactionHandler.List).Methods("GET")
	api.Handle("/transactions", validate(http.HandlerFunc(transactionHandler.Create))).Methods("POST")
	api.HandleFunc("/transactions/summary", transactionHandler.Summary).Methods("GET")

	api.HandleFunc("/elevation", geoHandler.Elevation).Methods("GET")
	api.HandleFunc("/geocode", geoHandler.ReverseGeocode).Methods("GET")

	if d.UploadDir != "" {
		r.PathPrefix(storage.URLPrefix).Handler(http.StripPrefix(storage.URLPrefix, noListing(http.FileServer(http.Dir(d.UploadDir))))).Methods("GET")
	}

	r.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return middleware.CORS()(r)
}

// noListing hides directory indexes of the upload dir.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
