package middleware

import (
	"log/slog"
	"net/http"

	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/gin-gonic/gin"
)

// RequireRoles admits the request only when the signed-in user holds one of
// roles. It must run after AuthMiddleware.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := gate.Decide(GetUser(c), roles, c.Request.URL.RequestURI())

		switch d.Outcome {
		case gate.RedirectLogin:
			abortUnauthorized(c, "Authentication required")
			return
		case gate.RedirectUnauthorized:
			slog.Warn("access denied",
				"request_id", GetRequestID(c),
				"path", c.FullPath(),
				"role", d.UserRole,
				"required_roles", d.RequiredRoles,
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success":        false,
				"error":          "Insufficient permissions",
				"redirect":       d.Redirect(),
				"required_roles": d.RequiredRoles,
				"role":           d.UserRole,
			})
			return
		}

		c.Next()
	}
}
