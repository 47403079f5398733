package handlers

import (
	"fmt"
	"net/http"

	"marketplace/internal/services"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

type GeoHandler struct {
	responder
	geo GeoLocator
}

func NewGeoHandler(geo GeoLocator, logger zerolog.Logger) *GeoHandler {
	return &GeoHandler{
		responder: responder{logger: logger},
		geo:       geo,
	}
}

func parseLatLng(r *http.Request) (services.LatLng, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lng") == "" {
		return services.LatLng{}, fmt.Errorf("%w: lat and lng are required", services.ErrValidation)
	}

	// negated bounds also reject NaN
	lat, err := cast.ToFloat64E(q.Get("lat"))
	if err != nil || !(lat >= -90 && lat <= 90) {
		return services.LatLng{}, fmt.Errorf("%w: lat must be a number between -90 and 90", services.ErrValidation)
	}
	lng, err := cast.ToFloat64E(q.Get("lng"))
	if err != nil || !(lng >= -180 && lng <= 180) {
		return services.LatLng{}, fmt.Errorf("%w: lng must be a number between -180 and 180", services.ErrValidation)
	}

	return services.LatLng{Lat: lat, Lng: lng}, nil
}

func (h *GeoHandler) Elevation(w http.ResponseWriter, r *http.Request) {
	at, err := parseLatLng(r)
	if err != nil {
		h.respondWithFailure(w, r, err, "Location")
		return
	}

	result, err := h.geo.Elevation(r.Context(), at)
	if err != nil {
		h.respondWithFailure(w, r, err, "Location")
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *GeoHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	at, err := parseLatLng(r)
	if err != nil {
		h.respondWithFailure(w, r, err, "Location")
		return
	}

	result, err := h.geo.ReverseGeocode(r.Context(), at)
	if err != nil {
		h.respondWithFailure(w, r, err, "Location")
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}
