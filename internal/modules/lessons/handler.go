package lessons

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/formtrack/formtrack/internal/apperror"
)

// Handler handles HTTP requests for lesson operations.
type Handler struct {
	service LessonService
}

// NewHandler creates a new lesson handler.
func NewHandler(service LessonService) *Handler {
	return &Handler{service: service}
}

// Create handles POST /lessons.
func (h *Handler) Create(c echo.Context) error {
	var input CreateInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	lesson, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, lesson)
}

// Get handles GET /lessons/:lessonID.
func (h *Handler) Get(c echo.Context) error {
	lesson, err := h.service.GetByID(c.Request().Context(), c.Param("lessonID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lesson)
}

// Update handles PATCH /lessons/:lessonID.
func (h *Handler) Update(c echo.Context) error {
	var input UpdateInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	lesson, err := h.service.Update(c.Request().Context(), c.Param("lessonID"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lesson)
}

// Delete handles DELETE /lessons/:lessonID.
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("lessonID")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// ListByCustomer handles GET /customers/:customerID/lessons.
func (h *Handler) ListByCustomer(c echo.Context) error {
	list, err := h.service.ListByCustomer(c.Request().Context(), c.Param("customerID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"lessons": list})
}
