package handlers

import (
	"context"
	"encoding/json"
	"io"

	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/storage"
)

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, username, password, email string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

type ProductStore interface {
	ListAll(ctx context.Context, owner *string) ([]*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	Update(ctx context.Context, id string, upd models.ProductUpdate) (*models.Product, *models.Product, error)
	Delete(ctx context.Context, id string) (*models.Product, error)
}

type TransactionStore interface {
	ListAll(ctx context.Context, owner *string) ([]*models.Transaction, error)
	Create(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	Summary(ctx context.Context, owner *string) (*models.LedgerSummary, error)
}

type GeoLocator interface {
	Elevation(ctx context.Context, at services.LatLng) (json.RawMessage, error)
	ReverseGeocode(ctx context.Context, at services.LatLng) (json.RawMessage, error)
}

type FileStore interface {
	Save(kind storage.Kind, original string, r io.Reader) (string, error)
}

// FileJanitor removes stored files after the owning record change commits.
type FileJanitor interface {
	Discard(ref *string)
}

type IDGenerator interface {
	Next() string
}
