package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rescuelog/backend/internal/model"
	"github.com/rescuelog/backend/internal/service"
)

type FirstAidHandler struct {
	svc    *service.FirstAidService
	logger *slog.Logger
}

func NewFirstAidHandler(svc *service.FirstAidService, logger *slog.Logger) *FirstAidHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirstAidHandler{svc: svc, logger: logger}
}

// ListGuides godoc
// @Summary Search first-aid guides
// @Description Case-insensitive substring match on the condition name. An empty search lists every guide.
// @Tags first-aid
// @Produce json
// @Param search query string false "Condition text"
// @Success 200 {array} model.FirstAidGuide
// @Failure 500 {object} model.ErrorResponse
// @Router /api/first-aid [get]
func (h *FirstAidHandler) ListGuides(c *gin.Context) {
	guides, err := h.svc.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "search first aid guides", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "Failed to fetch first aid guides"})
		return
	}
	c.JSON(http.StatusOK, guides)
}

// GetGuide godoc
// @Summary Get a first-aid guide
// @Tags first-aid
// @Produce json
// @Param condition path string true "Condition name"
// @Success 200 {object} model.FirstAidGuide
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/first-aid/{condition} [get]
func (h *FirstAidHandler) GetGuide(c *gin.Context) {
	guide, err := h.svc.Get(c.Request.Context(), c.Param("condition"))
	if err != nil {
		if errors.Is(err, service.ErrGuideNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{Message: "Condition not found"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "get first aid guide", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "Error retrieving guide"})
		return
	}
	c.JSON(http.StatusOK, guide)
}
