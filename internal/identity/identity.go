// Package identity works out which user a request acts for.
//
// Identity is claimed, not proven: any caller can name any user through the
// query string or header. Handlers depend on the Resolver interface only, so
// a session-backed implementation can replace RequestResolver without
// touching the stores.
package identity

import "net/http"

const (
	QueryParam = "user"
	Header     = "X-User"
	CookieName = "user"
)

type Resolver interface {
	// Resolve returns the acting username and whether one was found.
	Resolve(r *http.Request) (string, bool)
}

// RequestResolver checks the query parameter, then the header, then the
// cookie. Empty values are treated as absent.
type RequestResolver struct {
	Query  string
	Header string
	Cookie string
}

func NewRequestResolver() RequestResolver {
	return RequestResolver{Query: QueryParam, Header: Header, Cookie: CookieName}
}

func (rr RequestResolver) Resolve(r *http.Request) (string, bool) {
	if rr.Query != "" {
		if v := r.URL.Query().Get(rr.Query); v != "" {
			return v, true
		}
	}
	if rr.Header != "" {
		if v := r.Header.Get(rr.Header); v != "" {
			return v, true
		}
	}
	if rr.Cookie != "" {
		return CookieResolver{Name: rr.Cookie}.Resolve(r)
	}
	return "", false
}

// CookieResolver reads the identity cookie only.
type CookieResolver struct {
	Name string
}

func (cr CookieResolver) Resolve(r *http.Request) (string, bool) {
	c, err := r.Cookie(cr.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func SetCookie(w http.ResponseWriter, username string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    username,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
