package enumhttp

import (
	"github.com/labstack/echo/v4"

	"github.com/cerego/persistent-enum/enum"
	"github.com/cerego/persistent-enum/logger"
)

// RegisterRoutes registers the enum inspection and reload routes
func RegisterRoutes(e *echo.Echo, registry *enum.Registry, log *logger.Logger) {
	h := NewHandler(registry, log)

	enums := e.Group("/api/v1/enums")
	{
		enums.GET("", h.ListEnums)                          // GET /api/v1/enums
		enums.POST("/reload", h.Reload)                     // POST /api/v1/enums/reload
		enums.GET("/:name", h.GetEnum)                      // GET /api/v1/enums/statuses
		enums.GET("/:name/members/:member", h.LookupMember) // GET /api/v1/enums/statuses/members/ACTIVE
	}
}
