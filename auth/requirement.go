package auth

import (
	"net/http"
	"strings"
)

// Requirement is the capability a route demands. The zero value is public.
type Requirement struct {
	Authenticated bool
	// Roles, when non-empty, admits principals holding any one of them.
	Roles []string
}

// Public admits everyone.
var Public = Requirement{}

// Authenticated admits any authenticated principal.
func Authenticated() Requirement { return Requirement{Authenticated: true} }

// AnyRole admits principals holding at least one of roles.
func AnyRole(roles ...string) Requirement {
	return Requirement{Authenticated: true, Roles: roles}
}

// IsPublic reports whether the requirement admits anonymous callers.
func (req Requirement) IsPublic() bool {
	return !req.Authenticated && len(req.Roles) == 0
}

// Check returns nil when p satisfies the requirement, a 401 *Error for a
// missing principal and a 403 *Error for a missing role.
func (req Requirement) Check(p *Principal) error {
	if req.IsPublic() {
		return nil
	}
	if p == nil {
		return unauthorized("Authentication required")
	}
	if len(req.Roles) == 0 {
		return nil
	}
	for _, r := range req.Roles {
		if p.HasRole(r) {
			return nil
		}
	}
	return &Error{Status: http.StatusForbidden, Detail: "Requires role: " + strings.Join(req.Roles, " or ")}
}

func (req Requirement) String() string {
	switch {
	case req.IsPublic():
		return "public"
	case len(req.Roles) == 0:
		return "authenticated"
	default:
		return "role:" + strings.Join(req.Roles, "|")
	}
}
