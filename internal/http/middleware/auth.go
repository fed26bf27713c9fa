package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/http/response"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/ctxutil"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

const headerUserID = "X-User-Id"

// Authenticator validates an access token and returns its subject.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

type AuthMiddleware struct {
	log        *logger.Logger
	auth       Authenticator
	userHeader bool
}

// NewAuthMiddleware builds the identity middleware. With allowUserHeader the
// X-User-Id header identifies callers that send no token.
func NewAuthMiddleware(log *logger.Logger, auth Authenticator, allowUserHeader bool) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), auth: auth, userHeader: allowUserHeader}
}

// Identify attaches RequestData when the caller presents a token or a user
// header. A token that fails validation is rejected; no identity at all is
// left for the route to decide.
func (am *AuthMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var rd *ctxutil.RequestData
		if token := extractTokenFromAll(c); token != "" {
			sub, err := am.auth.Authenticate(token)
			if err != nil {
				am.log.Debug("token rejected", "path", c.Request.URL.Path, "error", err)
				response.RespondAPIError(c, err)
				return
			}
			rd = &ctxutil.RequestData{UserID: sub, Authenticated: true}
		} else if am.userHeader {
			if id := strings.TrimSpace(c.GetHeader(headerUserID)); id != "" {
				rd = &ctxutil.RequestData{UserID: id}
			}
		}
		if rd != nil {
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		}
		c.Next()
	}
}

// RequireUser rejects requests that Identify could not attribute to a user.
func (am *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ctxutil.UserID(c.Request.Context()) == "" {
			response.RespondAPIError(c, apierr.New(http.StatusUnauthorized, "unauthorized", apierr.ErrUnauthorized))
			return
		}
		c.Next()
	}
}

// RequireAuth only admits callers with a valid access token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || !rd.Authenticated || rd.UserID == "" {
			response.RespondAPIError(c, apierr.New(http.StatusUnauthorized, "missing_token", apierr.ErrUnauthorized))
			return
		}
		c.Next()
	}
}

// extractTokenFromAll prefers ?token= so EventSource clients, which cannot
// set headers, can authenticate.
func extractTokenFromAll(c *gin.Context) string {
	if qToken := strings.TrimSpace(c.Query("token")); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
