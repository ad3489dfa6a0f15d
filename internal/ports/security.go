package ports

import "time"

// AuthClaims is the opaque identity yielded by the platform's auth layer.
type AuthClaims struct {
	SubjectID string
	Email     string
	Role      string
}

type TokenVerifier interface {
	Verify(token string) (AuthClaims, error)
}

// AttributionClaim is the decoded content of a valid attribution cookie.
type AttributionClaim struct {
	Code      string
	ClickID   string
	ExpiresAt time.Time
}

// AttributionCookieCodec signs and validates the attribution cookie so the
// affiliate code pinned in a browser cannot be forged or extended. Decode
// must reject tampered or expired values.
type AttributionCookieCodec interface {
	Encode(claim AttributionClaim) (string, error)
	Decode(value string, now time.Time) (AttributionClaim, error)
}

// Cookie and CookieJar model the browser cookie surface as an explicit
// capability handed into attribution calls, keeping the logic testable
// without a real request cycle.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Expires  time.Time
	HTTPOnly bool
}

type CookieJar interface {
	Get(name string) (string, bool)
	Set(cookie Cookie)
}
