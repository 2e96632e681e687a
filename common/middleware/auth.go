package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const ClaimsKey = "claims"

// ParseAndValidateToken parses an HS256 token and returns its claims.
// If expectedRole is non-empty, the "role" claim must match it.
func ParseAndValidateToken(secret []byte, tokenStr, expectedRole string) (jwt.MapClaims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedRole != "" {
		if role, ok := claims["role"].(string); !ok || role != expectedRole {
			return nil, fmt.Errorf("insufficient role")
		}
	}
	return claims, nil
}

// RequireRole guards a route with a bearer JWT carrying the given role. With
// an empty secret the guard is disabled.
func RequireRole(secret []byte, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "Token is required")
			return
		}

		claims, err := ParseAndValidateToken(secret, strings.TrimPrefix(header, "Bearer "), role)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": http.StatusUnauthorized, "kind": "unauthorized", "message": msg},
	})
}
