package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/ctxutil"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
)

func dbc(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

func callerID(c *gin.Context) string {
	return ctxutil.UserID(c.Request.Context())
}

// callerOr falls back to a user id sent in the body when the request itself
// carries no identity.
func callerOr(c *gin.Context, bodyUserID string) (string, error) {
	if id := callerID(c); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(bodyUserID); id != "" {
		return id, nil
	}
	return "", apierr.BadRequest("missing_user", "user identity required (token, X-User-Id or user_id)")
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, apierr.New(http.StatusBadRequest, "invalid_"+name, apierr.ErrInvalidArgument)
	}
	return id, nil
}

func badJSON(err error) error {
	return apierr.BadRequest("invalid_json", "invalid request body: %v", err)
}
