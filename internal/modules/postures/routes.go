package postures

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/formtrack/formtrack/internal/middleware"
)

// RegisterRoutes sets up all posture routes on the given authenticated
// group. maxUploadSize limits the upload request body so oversized payloads
// are rejected before being read into memory.
func RegisterRoutes(g *echo.Group, h *Handler, maxUploadSize int64) {
	// Rate limit uploads: 30 per minute per IP.
	uploadRateLimit := middleware.RateLimit(30, time.Minute)

	// A 10% margin above maxUploadSize accounts for multipart encoding
	// overhead; the exact per-file ceiling is enforced in the service.
	bodyLimit := bodyLimitMiddleware(maxUploadSize + maxUploadSize/10)

	g.POST("/posture-images/upload", h.Upload, uploadRateLimit, bodyLimit)
	g.POST("/posture-images/signed-urls", h.SignedURLs)
	g.DELETE("/posture-images/:imageID", h.Delete)

	g.POST("/lessons/:lessonID/posture_groups", h.Link)
	g.GET("/customers/:customerID/posture_groups", h.Gallery)

	g.POST("/postures/compare", h.Compare)
}

// bodyLimitMiddleware returns middleware that rejects request bodies
// exceeding the given size in bytes, applied before the handler reads the
// body into memory.
func bodyLimitMiddleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().ContentLength > maxBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body too large; maximum is %d MB", maxBytes/(1024*1024)))
			}
			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
			return next(c)
		}
	}
}
