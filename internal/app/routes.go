package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/formtrack/formtrack/internal/auth"
	"github.com/formtrack/formtrack/internal/cache"
	"github.com/formtrack/formtrack/internal/modules/customers"
	"github.com/formtrack/formtrack/internal/modules/lessons"
	"github.com/formtrack/formtrack/internal/modules/postures"
)

// RegisterRoutes builds each module's repository/service/handler chain and
// registers all routes. This is the single place where modules are wired
// together; cross-module dependencies are passed as narrow interfaces.
//
// comparator may be nil when no posture analysis backend is configured.
func (a *App) RegisterRoutes(verifier auth.TokenVerifier, comparator postures.Comparator) {
	e := a.Echo

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// All module routes require a valid bearer token.
	authed := e.Group("", auth.RequireAuth(verifier))

	optionCache := cache.New(a.Redis, a.Config.Redis.OptionTTL)

	customerSvc := customers.NewCustomerService(customers.NewCustomerRepository(a.DB), optionCache)
	customers.RegisterRoutes(authed, customers.NewHandler(customerSvc))

	lessonSvc := lessons.NewLessonService(lessons.NewLessonRepository(a.DB))
	lessons.RegisterRoutes(authed, lessons.NewHandler(lessonSvc))

	resolver := postures.NewURLResolver(a.Storage,
		a.Config.Storage.DefaultExpiry, a.Config.Storage.MaxExpiry)
	postureSvc := postures.NewPostureService(
		postures.NewPostureRepository(a.DB),
		a.Storage,
		resolver,
		lessons.NewFinder(lessonSvc),
		comparator,
		a.Config.Upload.MaxSize,
	)
	postures.RegisterRoutes(authed, postures.NewHandler(postureSvc), a.Config.Upload.MaxSize)
}
