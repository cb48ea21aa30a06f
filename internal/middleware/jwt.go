package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

var errNoToken = errors.New("authorization header or token query required")

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*service.Claims, error)
}

// RequireCandidateJWT validates a candidate JWT from the Authorization header.
func RequireCandidateJWT(tokens TokenValidator) gin.HandlerFunc {
	return requireToken(tokens, service.TokenTypeCandidate, response.ErrCandidateAccessOnly, bearerOrQuery)
}

// RequireAdminJWT validates an admin JWT from the Authorization header. The
// ?token= fallback exists for EventSource, which cannot set headers.
func RequireAdminJWT(tokens TokenValidator) gin.HandlerFunc {
	return requireToken(tokens, service.TokenTypeAdmin, response.ErrAdminAccessOnly, bearerOrQuery)
}

// RequireCandidateWSAuth validates a candidate JWT from the query param
// ?token=... on WebSocket upgrade requests.
func RequireCandidateWSAuth(tokens TokenValidator) gin.HandlerFunc {
	return requireToken(tokens, service.TokenTypeCandidate, response.ErrCandidateAccessOnly, func(c *gin.Context) string {
		return c.Query("token")
	})
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func requireToken(tokens TokenValidator, want service.TokenType, wrongType response.ErrCode, extract func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extract(c)
		if tokenStr == "" {
			_ = c.Error(errNoToken)
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.ValidateToken(tokenStr)
		if err != nil {
			code := response.ErrTokenInvalid
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = response.ErrTokenExpired
			}
			response.AbortFail(c, http.StatusUnauthorized, code)
			return
		}

		if claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, wrongType)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func bearerOrQuery(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}
