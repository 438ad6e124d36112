package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, model.APIResponse{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, model.APIResponse{Success: true, Data: data})
}

func respondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, model.APIResponse{Success: true, Message: msg})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, model.APIResponse{Success: false, Error: msg})
}

// ownerScope returns the owner filter for the current user: their own id
// unless their role may see everyone's invoices. With no user it answers 401
// and reports false.
func ownerScope(c *gin.Context) (string, bool) {
	user := middleware.GetUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		c.Abort()
		return "", false
	}
	if gate.PermissionsFor(user.Role).CanViewAllInvoices {
		return "", true
	}
	return user.ID, true
}

// visibleTo reports whether the current user may see a record owned by owner
func visibleTo(c *gin.Context, owner string) bool {
	user := middleware.GetUser(c)
	if user == nil {
		return false
	}
	return gate.PermissionsFor(user.Role).CanViewAllInvoices || user.ID == owner
}

// queryDate parses an optional YYYY-MM-DD query parameter
func queryDate(c *gin.Context, name string) (time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
