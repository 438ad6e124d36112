package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserKey = "user"

	// tokenQueryParam carries the token for clients that cannot set headers,
	// such as browser websockets
	tokenQueryParam = "access_token"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims represents the JWT claims
type Claims struct {
	UserID string     `json:"uid"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// User returns the identity carried by the claims
func (c *Claims) User() *model.User {
	return &model.User{ID: c.UserID, Email: c.Email, Name: c.Name, Role: c.Role}
}

// GenerateToken generates a new JWT token for a user
func GenerateToken(user *model.User, cfg *config.AuthConfig) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(cfg.TokenExpireHours) * time.Hour)

	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseToken validates a token string and returns its claims
func ParseToken(tokenString string, cfg *config.AuthConfig) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthMiddleware validates JWT token and extracts user info
func AuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			abortUnauthorized(c, problem)
			return
		}

		claims, err := ParseToken(tokenString, cfg)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Store user info in context
		c.Set(ctxUserKey, claims.User())

		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, logger.RoleKey, string(claims.Role))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// bearerToken returns the request token, or a message saying why there is none
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query(tokenQueryParam); token != "" {
			return token, ""
		}
		return "", "Authorization header required"
	}

	// Extract token from "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success":  false,
		"error":    msg,
		"redirect": "/login",
		"from":     c.Request.URL.RequestURI(),
	})
}

// GetUser gets the signed-in user from context
func GetUser(c *gin.Context) *model.User {
	if user, exists := c.Get(ctxUserKey); exists {
		if u, ok := user.(*model.User); ok {
			return u
		}
	}
	return nil
}

// GetUserID gets the signed-in user id from context
func GetUserID(c *gin.Context) string {
	if u := GetUser(c); u != nil {
		return u.ID
	}
	return ""
}

// GetRole gets the signed-in user's role from context
func GetRole(c *gin.Context) model.Role {
	if u := GetUser(c); u != nil {
		return u.Role
	}
	return ""
}
