package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"freight/internal/domain"
)

// actorContextKey is the gin context key the resolved actor is stored under.
const actorContextKey = "actor"

// sessionClaims are the JWT claims a marketplace session token carries.
type sessionClaims struct {
	Role  string `json:"role"`
	OrgID string `json:"org"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the bearer token into a domain.Actor, or rejects
// the request as unauthenticated.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		if claims.Subject == "" || claims.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "incomplete session claims"})
			return
		}

		c.Set(actorContextKey, domain.Actor{
			UserID: claims.Subject,
			Role:   domain.Role(claims.Role),
			OrgID:  claims.OrgID,
		})

		c.Next()
	}
}

// ActorFromContext returns the actor resolved by AuthMiddleware.
func ActorFromContext(c *gin.Context) (domain.Actor, bool) {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := value.(domain.Actor)
	return actor, ok
}
