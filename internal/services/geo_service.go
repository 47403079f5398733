package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	maxProviderResponse = 1 << 20
	statusUnavailable   = "UNAVAILABLE"
)

// GeoService forwards elevation and reverse-geocoding lookups to the Google
// Maps web services.
type GeoService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  zerolog.Logger
}

func NewGeoService(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *GeoService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GeoService{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
}

type elevationFallback struct {
	Elevation *float64 `json:"elevation"`
	Location  LatLng   `json:"location"`
	Formatted string   `json:"formatted"`
}

type geocodeFallback struct {
	FormattedAddress string `json:"formatted_address"`
	Location         LatLng `json:"location"`
}

// Elevation returns the provider's first elevation result, or a result that
// carries only the formatted coordinates when the provider has none.
func (s *GeoService) Elevation(ctx context.Context, at LatLng) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("locations", fmt.Sprintf("%f,%f", at.Lat, at.Lng))

	first, ok, err := s.firstResult(ctx, "/elevation/json", params)
	if err != nil {
		return nil, err
	}
	if ok {
		return first, nil
	}
	return json.Marshal(elevationFallback{Location: at, Formatted: at.String()})
}

// ReverseGeocode returns the provider's first address for the coordinates,
// or the formatted coordinates as the address when nothing matches.
func (s *GeoService) ReverseGeocode(ctx context.Context, at LatLng) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", at.Lat, at.Lng))

	first, ok, err := s.firstResult(ctx, "/geocode/json", params)
	if err != nil {
		return nil, err
	}
	if ok {
		return first, nil
	}
	return json.Marshal(geocodeFallback{FormattedAddress: at.String(), Location: at})
}

func (s *GeoService) firstResult(ctx context.Context, path string, params url.Values) (json.RawMessage, bool, error) {
	if s.apiKey != "" {
		params.Set("key", s.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		// the request URL carries the API key, keep it out of logs
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		s.logger.Error().Err(err).Str("path", path).Msg("Geolocation request failed")
		return nil, false, &UpstreamError{Status: statusUnavailable, Message: "Geolocation provider unavailable"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Error reading geolocation response")
		return nil, false, &UpstreamError{Status: statusUnavailable, Message: "Geolocation provider unavailable"}
	}

	s.logger.Debug().
		Str("path", path).
		Int("http_status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Geolocation response")

	if !gjson.ValidBytes(body) {
		return nil, false, &UpstreamError{Status: resp.Status}
	}

	status := gjson.GetBytes(body, "status").String()
	switch status {
	case "OK":
		first := gjson.GetBytes(body, "results.0")
		if !first.Exists() {
			return nil, false, nil
		}
		return json.RawMessage(first.Raw), true, nil
	case "ZERO_RESULTS":
		return nil, false, nil
	default:
		if status == "" {
			status = resp.Status
		}
		msg := gjson.GetBytes(body, "error_message").String()
		s.logger.Warn().Str("path", path).Str("status", status).Str("message", msg).Msg("Geolocation provider error")
		return nil, false, &UpstreamError{Status: status, Message: msg}
	}
}
