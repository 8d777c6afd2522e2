package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	UserIDKey    = "userID"
	UserNameKey  = "userName"
	UserRoleKey  = "role"
	SessionIDKey = "sessionID"
)

// PrincipalClaims are the claims the staff-management system places in the
// bearer tokens it issues. The audit subsystem only reads them; it never
// issues tokens.
type PrincipalClaims struct {
	UserID    uint   `json:"uid"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Principal attaches the authenticated actor to the request context when a
// valid bearer token is present. It never aborts: requests without a
// principal proceed so the capture middleware can still observe login
// attempts, and RequireAuth guards the endpoints that need an actor.
func Principal(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}

		claims := &PrincipalClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			GetRequestLogger(c).WithError(err).Debug("rejected bearer token")
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserNameKey, claims.Name)
		c.Set(UserRoleKey, claims.Role)
		if claims.SessionID != "" {
			c.Set(SessionIDKey, claims.SessionID)
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 when no principal was attached by Principal.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(UserIDKey); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
