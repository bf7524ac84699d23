package postures

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/formtrack/formtrack/internal/apperror"
)

// Handler handles HTTP requests for posture operations.
type Handler struct {
	service PostureService
}

// NewHandler creates a new posture handler.
func NewHandler(service PostureService) *Handler {
	return &Handler{service: service}
}

// Upload handles multipart image uploads (POST /posture-images/upload).
// The postureGroupId field carries either a server group id or a temporary
// client token; a token's first upload also needs customerId to provision
// the group.
func (h *Handler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperror.NewBadRequest("no file provided")
	}

	src, err := file.Open()
	if err != nil {
		return apperror.NewInternal(err)
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		return apperror.NewInternal(err)
	}

	input := UploadInput{
		GroupRef:   c.FormValue("postureGroupId"),
		CustomerID: c.FormValue("customerId"),
		Position:   c.FormValue("position"),
		Consent:    c.FormValue("consentPublication") == "true",
		MimeType:   file.Header.Get("Content-Type"),
		FileSize:   int64(len(fileBytes)),
		FileBytes:  fileBytes,
	}

	result, err := h.service.Upload(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// signedURLsRequest is the body of a batch resolution request. ExpiresIn is
// in seconds; zero means the server default.
type signedURLsRequest struct {
	ImageIDs  []string `json:"imageIds"`
	ExpiresIn int64    `json:"expiresIn"`
}

// SignedURLs handles POST /posture-images/signed-urls: one request resolves
// access URLs for a whole batch of image ids.
func (h *Handler) SignedURLs(c echo.Context) error {
	var req signedURLsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.ExpiresIn < 0 {
		return apperror.NewValidation("expiresIn must not be negative")
	}

	urls, err := h.service.SignedURLs(c.Request().Context(), req.ImageIDs, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"urls": urls})
}

// Delete handles DELETE /posture-images/:imageID.
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.DeleteImage(c.Request().Context(), c.Param("imageID")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// linkRequest is the body of a group-to-lesson link request. PostureGroupID
// may be empty, a server group id, or the temporary token captures ran under.
type linkRequest struct {
	PostureGroupID string `json:"postureGroupId"`
}

// Link handles POST /lessons/:lessonID/posture_groups: reconciles the
// posture group captured during a session onto its saved lesson.
func (h *Handler) Link(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	group, err := h.service.LinkGroupToLesson(c.Request().Context(), c.Param("lessonID"), req.PostureGroupID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, group)
}

// Gallery handles GET /customers/:customerID/posture_groups. An optional
// expiresIn query (seconds) controls how long the resolved URLs stay valid.
func (h *Handler) Gallery(c echo.Context) error {
	var expiresIn time.Duration
	if raw := c.QueryParam("expiresIn"); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || secs < 0 {
			return apperror.NewValidation("expiresIn must be a non-negative number of seconds")
		}
		expiresIn = time.Duration(secs) * time.Second
	}

	gallery, err := h.service.CustomerGallery(c.Request().Context(), c.Param("customerID"), expiresIn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gallery)
}

// compareRequest is the body of a before/after comparison request.
type compareRequest struct {
	BeforeID string `json:"beforeId"`
	AfterID  string `json:"afterId"`
}

// Compare handles POST /postures/compare.
func (h *Handler) Compare(c echo.Context) error {
	var req compareRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	comparison, err := h.service.Compare(c.Request().Context(), req.BeforeID, req.AfterID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comparison)
}
