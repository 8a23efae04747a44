package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/server/auth"
	"github.com/hyoshida/estatesync/internal/syncapi"
)

const claimsKey = "authClaims"

// authRequired validates the bearer token and stores its claims on the
// request context. Expired tokens get a distinct error code so clients know
// to re-login rather than retry.
func authRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthHeaderName)
		if header == "" || !strings.HasPrefix(header, common.BearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, syncapi.ErrorResponse{
				Error: "missing bearer token", Code: syncapi.CodeUnauthorized,
			})
			return
		}

		claims, err := auth.ParseToken(strings.TrimPrefix(header, common.BearerPrefix), secret)
		if err != nil {
			code := syncapi.CodeUnauthorized
			if errors.Is(err, common.ErrTokenExpired) {
				code = syncapi.CodeTokenExpired
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, syncapi.ErrorResponse{
				Error: "invalid token", Code: code,
			})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(*auth.Claims)
	return claims
}
