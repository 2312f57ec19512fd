package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/server/middlewares"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// A Controller is an Inversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Database database.Client
	// Service token params
	APISecret []byte
}

// EchoEngine instantiates the web server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	router := engine.Group("")
	restricted := router.Group("")
	restricted.Use(middlewares.ServiceToken(ctrl.APISecret))

	// generic handlers
	//
	version := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	}
	router.GET("/", version)
	router.GET("/version", version)

	//
	// lifecycle event handlers
	//
	event := &event{
		db: ctrl.Database,
	}
	restricted.POST("/events/item-created", event.ItemCreated)
	restricted.POST("/events/item-status", event.ItemStatusChanged)
	restricted.POST("/events/comment-approval", event.CommentApprovalChanged)
	restricted.POST("/events/attachment", event.AttachmentChanged)
	restricted.POST("/events/group-updated", event.GroupUpdated)
	restricted.POST("/events/group-visibility", event.GroupVisibilityChanged)
	restricted.POST("/events/group-deleted", event.GroupDeleted)
	restricted.POST("/events/item-removed", event.ItemRemoved)
	restricted.POST("/events/user-removed", event.UserRemoved)

	//
	// reconciliation handlers
	//
	reconcile := &reconcile{
		db: ctrl.Database,
	}
	restricted.POST("/reconcile", reconcile.Run)

	return engine
}

// PrintRoutes prints the Echo engine exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
