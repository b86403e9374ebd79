package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"listings-api/dto"
	"listings-api/utils"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey   = "claims"
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// TokenValidator checks a session token. The auth service implements it.
type TokenValidator interface {
	ValidateToken(token string) (*utils.Claims, error)
}

// AuthMiddleware validates the session token on every request. The token
// comes from the Authorization header or, failing that, the session cookie.
func AuthMiddleware(validator TokenValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Find the token
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
				token, ok = cookie, true
			}
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "unauthorized",
				Message: "authorization required",
			})
			return
		}

		// 2. Validate it
		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "unauthorized",
				Message: "invalid or expired token",
			})
			return
		}

		// 3. Expose the user to the handlers
		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// ClaimsFrom returns the claims AuthMiddleware stored, if any.
func ClaimsFrom(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// BodyLimit caps the request body size. Reads past the cap fail, which
// multipart parsing reports as an error.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
				Error:   "request_too_large",
				Message: "request body is too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
