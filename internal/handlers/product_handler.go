package handlers

import (
	"net/http"
	"strings"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type ProductHandler struct {
	responder
	products ProductStore
	files    FileStore
	janitor  FileJanitor
	ids      IDGenerator
}

func NewProductHandler(products ProductStore, files FileStore, janitor FileJanitor, ids IDGenerator, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		responder: responder{logger: logger},
		products:  products,
		files:     files,
		janitor:   janitor,
		ids:       ids,
	}
}

var maxProductBody = storage.ProductImage.MaxBytes + formMemory

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListAll(r.Context(), middleware.Owner(r))
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

// saveImage stores the "image" upload if the request carries one.
func (h *ProductHandler) saveImage(r *http.Request) (*string, error) {
	file, header, ok := uploadedFile(r, "image")
	if !ok {
		return nil, nil
	}
	defer file.Close()

	ref, err := h.files.Save(storage.ProductImage, header.Filename, file)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(w, r, maxProductBody)
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}
	stock, err := fields.integer("stock")
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	product := &models.Product{
		ID:    h.ids.Next(),
		Owner: middleware.Owner(r),
	}
	product.Title, _ = fields.str("title")
	product.Description, _ = fields.str("description")
	product.Price, _ = fields.str("price")
	if stock != nil {
		product.Stock = *stock
	}

	product.Image, err = h.saveImage(r)
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	created, err := h.products.Create(r.Context(), product)
	if err != nil {
		h.janitor.Discard(product.Image)
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, created)
}

// Update replaces only the fields present in the request. A new image
// replaces the stored one, which is removed once the update commits.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.products.GetByID(r.Context(), id); err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	fields, err := parseFields(w, r, maxProductBody)
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	var upd models.ProductUpdate
	if title, ok := fields.str("title"); ok && strings.TrimSpace(title) != "" {
		upd.Title = &title
	}
	upd.Description = fields.strPtr("description")
	upd.Price = fields.strPtr("price")
	if upd.Stock, err = fields.integer("stock"); err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	if upd.Image, err = h.saveImage(r); err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	prev, updated, err := h.products.Update(r.Context(), id, upd)
	if err != nil {
		h.janitor.Discard(upd.Image)
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	if upd.Image != nil && prev.Image != nil && *prev.Image != *upd.Image {
		h.janitor.Discard(prev.Image)
	}

	h.respondWithJSON(w, http.StatusOK, updated)
}

// Delete enforces the single ownership rule: an owned product may only be
// deleted by its owner. Products without an owner can be deleted by anyone.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	if product.Owner != nil {
		username, _ := middleware.GetUsername(r)
		if username != *product.Owner {
			h.logger.Warn().
				Str("product_id", id).
				Str("owner", *product.Owner).
				Str("username", username).
				Msg("Delete refused for non-owner")
			h.respondWithFailure(w, r, services.ErrForbidden, "Product")
			return
		}
	}

	deleted, err := h.products.Delete(r.Context(), id)
	if err != nil {
		h.respondWithFailure(w, r, err, "Product")
		return
	}

	// the stored row may carry a newer image than the snapshot above
	h.janitor.Discard(deleted.Image)
	h.respondWithJSON(w, http.StatusOK, okBody{OK: true})
}
