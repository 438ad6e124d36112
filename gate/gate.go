// Package gate decides whether a user may open a screen or call an endpoint.
package gate

import (
	"github.com/AnTengye/invoicedesk/model"
)

// Outcome is the result kind of a Decide call
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	}
	return "unknown"
}

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Decision tells the caller what to do with a request.
// From is set for RedirectLogin; RequiredRoles and UserRole for
// RedirectUnauthorized.
type Decision struct {
	Outcome       Outcome
	From          string
	RequiredRoles []model.Role
	UserRole      model.Role
}

// Redirect returns the location the caller should be sent to, or "" on Allow
func (d Decision) Redirect() string {
	switch d.Outcome {
	case RedirectLogin:
		return LoginPath
	case RedirectUnauthorized:
		return UnauthorizedPath
	}
	return ""
}

// Decide gates access to a location. An empty required set admits any
// signed-in user and admin satisfies every set.
func Decide(user *model.User, required []model.Role, from string) Decision {
	if user == nil {
		return Decision{Outcome: RedirectLogin, From: from}
	}
	if len(required) > 0 && !HasAnyRole(user, required) {
		return Decision{
			Outcome:       RedirectUnauthorized,
			RequiredRoles: append([]model.Role(nil), required...),
			UserRole:      user.Role,
		}
	}
	return Decision{Outcome: Allow}
}

// HasRole reports whether user holds role. Admin holds every role.
func HasRole(user *model.User, role model.Role) bool {
	if user == nil {
		return false
	}
	return user.Role == model.RoleAdmin || user.Role == role
}

// HasAnyRole reports whether user holds at least one of roles
func HasAnyRole(user *model.User, roles []model.Role) bool {
	for _, r := range roles {
		if HasRole(user, r) {
			return true
		}
	}
	return false
}
