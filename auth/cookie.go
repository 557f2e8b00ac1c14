package auth

import "net/http"

// CookieName is the cookie BearerAuthenticator reads tokens from.
const CookieName = "token"

// TokenCookie builds the HttpOnly cookie carrying a bearer token. When
// domain is non-empty the cookie is shared across subdomains.
func TokenCookie(token, domain string, secure bool, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
	if domain != "" {
		c.Domain = domain
	}
	return c
}
