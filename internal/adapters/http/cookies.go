package http

import (
	"net/http"

	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// requestCookieJar adapts one request/response pair to the cookie capability
// the attribution flow needs. Writes go straight to Set-Cookie headers.
type requestCookieJar struct {
	r *http.Request
	w http.ResponseWriter
}

func newCookieJar(w http.ResponseWriter, r *http.Request) *requestCookieJar {
	return &requestCookieJar{r: r, w: w}
}

func (j *requestCookieJar) Get(name string) (string, bool) {
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *requestCookieJar) Set(cookie ports.Cookie) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		Expires:  cookie.Expires,
		HttpOnly: cookie.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	})
}
