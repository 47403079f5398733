package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"marketplace/internal/services"
	"marketplace/internal/storage"

	"github.com/spf13/cast"
)

const formMemory = 1 << 20

// formFields reads scalar and JSON fields from either a JSON object body or
// a (multipart) form, so every write endpoint accepts both.
type formFields struct {
	json map[string]json.RawMessage
	form url.Values
}

func isJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func parseFields(w http.ResponseWriter, r *http.Request, maxBody int64) (formFields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if isJSON(r) {
		var m map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			return formFields{}, bodyError(err)
		}
		return formFields{json: m}, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(formMemory); err != nil {
			return formFields{}, bodyError(err)
		}
		return formFields{form: r.MultipartForm.Value}, nil
	}

	if err := r.ParseForm(); err != nil {
		return formFields{}, bodyError(err)
	}
	return formFields{form: r.PostForm}, nil
}

func bodyError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%w: request body exceeds %d bytes", storage.ErrTooLarge, tooBig.Limit)
	}
	return fmt.Errorf("%w: invalid request body", services.ErrValidation)
}

// str returns the field as text. JSON null and missing keys are absent.
func (f formFields) str(key string) (string, bool) {
	if f.json != nil {
		raw, ok := f.json[key]
		if !ok {
			return "", false
		}
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil || v == nil {
			return "", false
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return "", false
		}
		return s, true
	}

	vals, ok := f.form[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (f formFields) strPtr(key string) *string {
	if s, ok := f.str(key); ok {
		return &s
	}
	return nil
}

// integer returns nil when the field is absent or blank.
func (f formFields) integer(key string) (*int, error) {
	s, ok := f.str(key)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, nil
	}
	n, err := cast.ToIntE(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", services.ErrValidation, key)
	}
	return &n, nil
}

// raw returns a JSON valued field. Form fields carry the JSON as text.
func (f formFields) raw(key string) json.RawMessage {
	if f.json != nil {
		raw := f.json[key]
		if string(raw) == "null" {
			return nil
		}
		return raw
	}
	s, ok := f.str(key)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return json.RawMessage(s)
}

// uploadedFile returns the named multipart file, or ok=false when the request
// has none.
func uploadedFile(r *http.Request, name string) (multipart.File, *multipart.FileHeader, bool) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[name]) == 0 {
		return nil, nil, false
	}
	file, header, err := r.FormFile(name)
	if err != nil {
		return nil, nil, false
	}
	return file, header, true
}
