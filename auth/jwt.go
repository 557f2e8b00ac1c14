package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the minimum HMAC secret length.
const MinSecretLen = 32

// ErrSecretTooShort is returned for secrets under MinSecretLen bytes.
var ErrSecretTooShort = fmt.Errorf("auth: secret must be at least %d bytes", MinSecretLen)

// Claims is the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
}

// GenerateToken signs claims with HS256 and sets iat/exp from expiry.
func GenerateToken(secret []byte, claims *Claims, expiry time.Duration) (string, error) {
	if len(secret) < MinSecretLen {
		return "", ErrSecretTooShort
	}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiry))
	if claims.Subject == "" {
		claims.Subject = claims.Username
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateToken parses tokenStr, pinning the signing method to HS256.
func ValidateToken(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v (only HS256 allowed)", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// BearerAuthenticator accepts HS256 tokens from "Authorization: Bearer" or
// the "token" cookie. The header wins when both are present.
type BearerAuthenticator struct {
	secret []byte
}

// NewBearerAuthenticator validates the secret length up front.
func NewBearerAuthenticator(secret []byte) (*BearerAuthenticator, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	return &BearerAuthenticator{secret: secret}, nil
}

// Issue signs a token for p.
func (a *BearerAuthenticator) Issue(p *Principal, expiry time.Duration) (string, error) {
	return GenerateToken(a.secret, &Claims{Username: p.Name, Roles: p.Roles}, expiry)
}

// Authenticate implements Authenticator.
func (a *BearerAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	var tokenStr string
	if name, creds, present, ok := scheme(r); present && strings.EqualFold(name, "Bearer") {
		if !ok {
			return nil, &Error{Status: http.StatusBadRequest, Detail: "Invalid Authorization format"}
		}
		tokenStr = creds
	} else if !present {
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			tokenStr = c.Value
		}
	}
	if tokenStr == "" {
		return nil, nil
	}

	claims, err := ValidateToken(a.secret, tokenStr)
	if err != nil {
		return nil, &Error{Status: http.StatusUnauthorized, Detail: "Invalid token", Challenge: `Bearer realm="` + Realm + `"`}
	}
	return &Principal{Name: claims.Username, Roles: claims.Roles, Provider: "bearer"}, nil
}
