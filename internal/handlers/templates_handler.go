package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
	"github.com/suhachi/mystorestory-orders/internal/auth"
	"github.com/suhachi/mystorestory-orders/internal/templates"
	"github.com/suhachi/mystorestory-orders/internal/validation"
)

// renderTemplate renders a published template against caller data.
func (h *handler) renderTemplate(c *gin.Context) {
	storeID := c.Param("storeID")
	templateID := c.Param("templateID")

	if _, err := auth.RequireStore(c, storeID); err != nil {
		respondError(c, err)
		return
	}

	var req validation.RenderTemplateRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	t, err := h.tmplStore.Get(c.Request.Context(), storeID, templateID)
	if err != nil {
		respondError(c, apperr.Wrap(err, apperr.Internal, "get template failed"))
		return
	}
	if t == nil {
		respondError(c, apperr.New(apperr.NotFound, "template %s not found", templateID))
		return
	}

	out, err := templates.Render(t, req.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
