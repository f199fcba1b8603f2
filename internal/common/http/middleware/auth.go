package middleware

import (
	"strings"

	pkgerrors "acmdaily/pkg/errors"
	"acmdaily/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds the HMAC settings for admin route protection.
type AuthConfig struct {
	Secret string
	Issuer string
}

// AdminAuthMiddleware guards the operational endpoints (distribution and
// reconciliation triggers) behind an HMAC-signed bearer token carrying
// an admin role claim.
func AdminAuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth not configured")
			return
		}

		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !parsed.Valid {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "invalid token")
			return
		}

		if cfg.Issuer != "" {
			issuer, err := claims.GetIssuer()
			if err != nil || issuer != cfg.Issuer {
				response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "invalid issuer")
				return
			}
		}

		role, _ := claims["role"].(string)
		if !strings.EqualFold(role, "admin") {
			response.AbortWithErrorCode(c, pkgerrors.Forbidden, "insufficient role")
			return
		}

		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
