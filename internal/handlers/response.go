package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/services"
	"marketplace/internal/storage"

	"github.com/rs/zerolog"
)

type errorBody struct {
	Error string `json:"error"`
}

type okBody struct {
	OK bool `json:"ok"`
}

// responder is embedded by every handler for uniform JSON replies.
type responder struct {
	logger zerolog.Logger
}

func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (h responder) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, errorBody{Error: message})
}

// respondWithFailure maps store and upload errors onto status codes. Anything
// unexpected is logged and reported without detail.
func (h responder) respondWithFailure(w http.ResponseWriter, r *http.Request, err error, what string) {
	var upstream *services.UpstreamError

	switch {
	case errors.Is(err, services.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, services.ErrForbidden):
		h.respondWithError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrUnsupportedType):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConflict):
		h.respondWithError(w, http.StatusConflict, what+" already exists")
	case errors.As(err, &upstream):
		h.respondWithError(w, http.StatusInternalServerError, upstream.Error())
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r)).
			Str("path", r.URL.Path).
			Msg("Request failed")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
