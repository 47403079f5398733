package handlers

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/storage"

	"github.com/rs/zerolog"
)

type TransactionHandler struct {
	responder
	transactions TransactionStore
	files        FileStore
	janitor      FileJanitor
}

func NewTransactionHandler(transactions TransactionStore, files FileStore, janitor FileJanitor, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{
		responder:    responder{logger: logger},
		transactions: transactions,
		files:        files,
		janitor:      janitor,
	}
}

var maxTransactionBody = storage.PaymentProof.MaxBytes + formMemory

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.transactions.ListAll(r.Context(), middleware.Owner(r))
	if err != nil {
		h.respondWithFailure(w, r, err, "Transaction")
		return
	}
	h.respondWithJSON(w, http.StatusOK, transactions)
}

func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.transactions.Summary(r.Context(), middleware.Owner(r))
	if err != nil {
		h.respondWithFailure(w, r, err, "Transaction")
		return
	}
	h.respondWithJSON(w, http.StatusOK, summary)
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(w, r, maxTransactionBody)
	if err != nil {
		h.respondWithFailure(w, r, err, "Transaction")
		return
	}

	tx := &models.Transaction{
		Owner:    middleware.Owner(r),
		Items:    fields.raw("items"),
		Location: fields.raw("location"),
	}
	tx.PaymentMethod, _ = fields.str("paymentMethod")
	tx.Timestamp, _ = fields.str("timestamp")

	// reject bad items before accepting an upload for them
	if _, _, err := services.Summarize(tx.Items); err != nil {
		h.respondWithFailure(w, r, err, "Transaction")
		return
	}

	if file, header, ok := uploadedFile(r, "proof"); ok {
		defer file.Close()
		ref, err := h.files.Save(storage.PaymentProof, header.Filename, file)
		if err != nil {
			h.respondWithFailure(w, r, err, "Transaction")
			return
		}
		tx.ProofFilename = &ref
	}

	created, err := h.transactions.Create(r.Context(), tx)
	if err != nil {
		h.janitor.Discard(tx.ProofFilename)
		h.respondWithFailure(w, r, err, "Transaction")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, created)
}
