package portfolio

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/shared/server/middleware"
	"leaselens-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/portfolio", h.overview)
}

func (h *Handler) overview(c *gin.Context) {
	stats, err := h.Svc.Overview(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load portfolio", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"stats": stats})
}
