package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"marketplace/internal/models"

	"github.com/rs/zerolog"
)

const productColumns = "id, title, description, price, stock, image, owner"

type ProductService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewProductService(db *sql.DB, logger zerolog.Logger) *ProductService {
	return &ProductService{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var image, owner sql.NullString

	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Stock, &image, &owner); err != nil {
		return nil, err
	}

	if image.Valid {
		p.Image = &image.String
	}
	if owner.Valid {
		p.Owner = &owner.String
	}
	return &p, nil
}

// ListAll returns every product, or only those whose owner equals *owner.
func (s *ProductService) ListAll(ctx context.Context, owner *string) ([]*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	var args []interface{}
	if owner != nil {
		query += " WHERE owner = ?"
		args = append(args, *owner)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing products")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error fetching product")
		return nil, fmt.Errorf("database error: %w", err)
	}
	return p, nil
}

// Create stores p under its caller-supplied id. Blank title falls back to
// models.DefaultProductTitle and negative stock to zero.
func (s *ProductService) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p.ID == "" {
		return nil, validationError("product id is required")
	}

	created := *p
	if strings.TrimSpace(created.Title) == "" {
		created.Title = models.DefaultProductTitle
	}
	if created.Stock < 0 {
		created.Stock = 0
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		created.ID, created.Title, created.Description, created.Price, created.Stock,
		nullString(created.Image), nullString(created.Owner),
	)
	if isDuplicateKey(err) {
		return nil, ErrConflict
	}
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", created.ID).Msg("Error creating product")
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info().Str("product_id", created.ID).Msg("Product created")
	return &created, nil
}

// Update merges upd into the stored product under a row lock and returns the
// row as it was before and after.
func (s *ProductService) Update(ctx context.Context, id string, upd models.ProductUpdate) (*models.Product, *models.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting product update")
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := scanProduct(tx.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ? FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error locking product")
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	next := upd.Apply(*prev)
	if next.Stock < 0 {
		next.Stock = 0
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET title = ?, description = ?, price = ?, stock = ?, image = ? WHERE id = ?",
		next.Title, next.Description, next.Price, next.Stock, nullString(next.Image), id,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error updating product")
		return nil, nil, fmt.Errorf("failed to update product: %w", err)
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error committing product update")
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return prev, &next, nil
}

// Delete removes the product and returns the row as it was when deleted, so
// the caller discards the image that was actually stored.
func (s *ProductService) Delete(ctx context.Context, id string) (*models.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting product delete")
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	deleted, err := scanProduct(tx.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ? FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error locking product")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id); err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error deleting product")
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error committing product delete")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().Str("product_id", id).Msg("Product deleted")
	return deleted, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
