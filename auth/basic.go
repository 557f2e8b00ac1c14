package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// User is one entry of the Basic auth user table.
type User struct {
	Name         string   `yaml:"name" toml:"name"`
	PasswordHash string   `yaml:"password_hash" toml:"password_hash"`
	Roles        []string `yaml:"roles" toml:"roles"`
}

// HashPassword returns the bcrypt hash to store in User.PasswordHash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// BasicAuthenticator checks "Authorization: Basic" credentials against a
// bcrypt user table.
type BasicAuthenticator struct {
	users map[string]User
}

// NewBasicAuthenticator indexes users by name. Later duplicates win.
func NewBasicAuthenticator(users []User) *BasicAuthenticator {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.Name] = u
	}
	return &BasicAuthenticator{users: m}
}

// Authenticate implements Authenticator.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	name, _, present, ok := scheme(r)
	if !present || !strings.EqualFold(name, "Basic") {
		return nil, nil
	}
	if !ok {
		return nil, &Error{Status: http.StatusBadRequest, Detail: "Invalid Authorization format"}
	}
	user, password, ok := r.BasicAuth()
	if !ok {
		return nil, &Error{Status: http.StatusBadRequest, Detail: "Invalid Authorization format"}
	}
	u, found := a.users[user]
	if !found {
		// Same cost as a real check so unknown names are not distinguishable by timing.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, unauthorized("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, unauthorized("Invalid credentials")
	}
	return &Principal{Name: u.Name, Roles: append([]string(nil), u.Roles...), Provider: "basic"}, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dynresp-dummy"), bcrypt.DefaultCost)
