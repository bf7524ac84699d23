package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders returns middleware that sets security-related HTTP headers
// on every response. These headers protect against common web attacks even
// if application-level vulnerabilities exist.
//
// FormTrack runs behind a reverse proxy that terminates TLS; these headers
// provide defense-in-depth at the application layer.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Content-Security-Policy: restrict what resources the browser can load.
			// 'self' allows resources from the same origin only.
			// img-src allows data:/blob: for local capture previews, and https:
			// for signed object storage URLs which live on a different host.
			// media-src blob: is needed for the live camera feed element.
			h.Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self'; "+
					"style-src 'self' 'unsafe-inline'; "+
					"img-src 'self' data: blob: https:; "+
					"media-src 'self' blob:; "+
					"connect-src 'self'; "+
					"frame-ancestors 'none'; "+
					"base-uri 'self'; "+
					"form-action 'self'",
			)

			// Strict-Transport-Security: enforce HTTPS for 1 year including
			// subdomains. TLS itself is terminated upstream.
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// X-Content-Type-Options: prevent MIME type sniffing.
			h.Set("X-Content-Type-Options", "nosniff")

			// X-Frame-Options: prevent clickjacking (redundant with CSP frame-ancestors
			// but some older browsers only support this header).
			h.Set("X-Frame-Options", "DENY")

			// Referrer-Policy: limit referrer information leaked to external sites.
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Permissions-Policy: the posture capture screen needs the camera;
			// everything else stays disabled.
			h.Set("Permissions-Policy",
				"camera=(self), microphone=(), geolocation=(), payment=()",
			)

			// X-XSS-Protection: legacy header for older browsers. Modern browsers
			// use CSP instead, but this doesn't hurt.
			h.Set("X-XSS-Protection", "1; mode=block")

			return next(c)
		}
	}
}
