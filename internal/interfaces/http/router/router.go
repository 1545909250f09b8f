// Package router mounts handler route groups under the versioned API prefix.
package router

import "github.com/gin-gonic/gin"

// RouteRegistrar is implemented by handlers that mount their own routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them under /api/<version>
type Router struct {
	engine  *gin.Engine
	version string
	mounts  []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion overrides the default "v1" prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

// NewRouter creates a Router on the given engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar; chainable
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.mounts = append(r.mounts, registrar)
	return r
}

// Setup mounts every registered group
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.version)
	for _, m := range r.mounts {
		m.RegisterRoutes(api)
	}
}
