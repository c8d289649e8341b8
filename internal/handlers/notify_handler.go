package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
	"github.com/suhachi/mystorestory-orders/internal/auth"
	"github.com/suhachi/mystorestory-orders/internal/validation"
)

// retryNotify replays dead-lettered notifications, best-effort. Requires a
// store role; missing records are informational, not batch failures.
func (h *handler) retryNotify(c *gin.Context) {
	ident, err := auth.Require(c)
	if err != nil {
		respondError(c, err)
		return
	}
	switch ident.Role {
	case auth.RoleAdmin, auth.RoleOwner, auth.RoleStaff:
	default:
		respondError(c, apperr.New(apperr.PermissionDenied, "role %q cannot retry notifications", ident.Role))
		return
	}

	var req validation.RetryNotifyRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	res := h.dispatcher.Retry(c.Request.Context(), req.FailureIDs)
	c.JSON(http.StatusOK, gin.H{
		"success": res.OK(),
		"results": res,
	})
}
