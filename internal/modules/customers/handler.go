package customers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/formtrack/formtrack/internal/apperror"
)

// Handler handles HTTP requests for customer operations.
type Handler struct {
	service CustomerService
}

// NewHandler creates a new customer handler.
func NewHandler(service CustomerService) *Handler {
	return &Handler{service: service}
}

// Create handles POST /customers.
func (h *Handler) Create(c echo.Context) error {
	var input CreateInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	customer, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, customer)
}

// Get handles GET /customers/:customerID.
func (h *Handler) Get(c echo.Context) error {
	customer, err := h.service.GetByID(c.Request().Context(), c.Param("customerID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

// Update handles PATCH /customers/:customerID.
func (h *Handler) Update(c echo.Context) error {
	var input UpdateInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	customer, err := h.service.Update(c.Request().Context(), c.Param("customerID"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

// Delete handles DELETE /customers/:customerID.
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("customerID")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// List handles GET /customers with limit/offset pagination.
func (h *Handler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	list, total, err := h.service.List(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"customers": list,
		"total":     total,
	})
}

// Options handles GET /customers/options for selection dropdowns.
func (h *Handler) Options(c echo.Context) error {
	options, err := h.service.ListOptions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"options": options})
}

// queryInt reads an integer query parameter with a default.
func queryInt(c echo.Context, name string, defaultVal int) int {
	if raw := c.QueryParam(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return defaultVal
}
