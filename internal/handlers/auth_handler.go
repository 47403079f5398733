package handlers

import (
	"errors"
	"net/http"
	"strings"

	"marketplace/internal/identity"
	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/rs/zerolog"
)

const (
	DashboardPath  = "/dashboard"
	LoginErrorPath = "/login?error=1"

	msgUsernameTaken = "Username already exists"
	maxAuthBody      = 64 << 10
)

type AuthHandler struct {
	responder
	users UserStore
}

func NewAuthHandler(users UserStore, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger},
		users:     users,
	}
}

func (h *AuthHandler) credentials(w http.ResponseWriter, r *http.Request) (models.RegisterRequest, error) {
	fields, err := parseFields(w, r, maxAuthBody)
	if err != nil {
		return models.RegisterRequest{}, err
	}
	username, _ := fields.str("username")
	password, _ := fields.str("password")
	email, _ := fields.str("email")
	return models.RegisterRequest{
		Username: strings.TrimSpace(username),
		Password: password,
		Email:    strings.TrimSpace(email),
	}, nil
}

// Register answers a taken username with a plain 200 message rather than an
// error status; the sign-up page shows the body as is.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := h.credentials(w, r)
	if err != nil {
		h.respondWithFailure(w, r, err, "User")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.respondWithText(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	_, err = h.users.FindByUsername(r.Context(), req.Username)
	if err == nil {
		h.respondWithText(w, http.StatusOK, msgUsernameTaken)
		return
	}
	if !errors.Is(err, services.ErrNotFound) {
		h.respondWithFailure(w, r, err, "User")
		return
	}

	user, err := h.users.Create(r.Context(), req.Username, req.Password, req.Email)
	if errors.Is(err, services.ErrConflict) {
		h.respondWithText(w, http.StatusOK, msgUsernameTaken)
		return
	}
	if err != nil {
		h.respondWithFailure(w, r, err, "User")
		return
	}

	identity.SetCookie(w, user.Username)
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := h.credentials(w, r)
	if err != nil {
		http.Redirect(w, r, LoginErrorPath, http.StatusSeeOther)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		h.logger.Warn().Str("username", req.Username).Msg("Login failed")
		http.Redirect(w, r, LoginErrorPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.respondWithFailure(w, r, err, "User")
		return
	}

	identity.SetCookie(w, user.Username)
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// WhoAmI reports the cookie identity only; query and header claims are not
// considered.
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	var resp models.WhoAmIResponse
	if username, ok := (identity.CookieResolver{Name: identity.CookieName}).Resolve(r); ok {
		resp.Username = &username
	}
	h.respondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) respondWithText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(msg))
}
