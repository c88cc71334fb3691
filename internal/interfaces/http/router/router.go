// Package router assembles the billing API: middleware chain, versioned
// route groups and the fallback for unknown routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dormitory/backend/internal/interfaces/http/dto"
	"github.com/dormitory/backend/internal/interfaces/http/middleware"
)

// Route binds one method and path, relative to its resource, to a handler.
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Resource is a collection such as /invoices mounted under the versioned
// API. Middleware runs after the API-wide chain.
type Resource struct {
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

func (r Resource) mount(api *gin.RouterGroup) {
	group := api.Group(r.Prefix, r.Middleware...)
	for _, rt := range r.Routes {
		group.Handle(rt.Method, rt.Path, rt.Handler)
	}
}

// Mount registers resources under /api/<version> behind apiMiddleware and
// answers every unmatched path with a ROUTE_NOT_FOUND envelope.
func Mount(engine *gin.Engine, version string, apiMiddleware []gin.HandlerFunc, resources ...Resource) {
	api := engine.Group("/api/"+version, apiMiddleware...)
	for _, res := range resources {
		res.mount(api)
	}
	engine.NoRoute(routeNotFound)
}

func routeNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, dto.NewErrorResponse(
		dto.ErrCodeRouteNotFound, "Route not found", middleware.GetRequestID(c)))
}

func get(path string, h gin.HandlerFunc) Route { return Route{http.MethodGet, path, h} }
func post(path string, h gin.HandlerFunc) Route { return Route{http.MethodPost, path, h} }
func put(path string, h gin.HandlerFunc) Route { return Route{http.MethodPut, path, h} }
func del(path string, h gin.HandlerFunc) Route { return Route{http.MethodDelete, path, h} }
